// Package runner sequences one generative module run:
// BUILD_PROMPT → INVOKE → PARSE → SAFETY_CHECK → AUDIT → CONTRACT_VALIDATE.
//
// Every outcome except a configuration fault is returned as a RunResult so that
// callers can apply deterministic fallbacks instead of propagating errors.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scholarforge/internal/articulation"
	"scholarforge/internal/audit"
	"scholarforge/internal/catalog"
	"scholarforge/internal/contract"
	"scholarforge/internal/logging"
	"scholarforge/internal/perception"
	"scholarforge/internal/prompt"
	"scholarforge/internal/safety"
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

// Configuration faults. These are the only conditions Run reports as errors.
var (
	ErrUnknownModule = errors.New("runner: unknown module")
	ErrNotGenerative = errors.New("runner: module has no prompt builder; call its rules engine directly")
	ErrInputMismatch = errors.New("runner: input does not belong to module")
)

// Invoker calls the generative provider for one module.
type Invoker interface {
	Invoke(ctx context.Context, desc catalog.Descriptor, prompt string) (perception.Completion, error)
}

// SafetyChecker scans generated text.
type SafetyChecker interface {
	Check(in schema.SafetyGateInput) schema.SafetyGateOutput
}

// Auditor checks structure and role purity.
type Auditor interface {
	Audit(desc catalog.Descriptor, fields map[string]any, text string) schema.AuditGateOutput
}

// RunRequest asks for one module run. ReferenceAnswer is used only by the
// safety gate and never reaches the prompt.
type RunRequest struct {
	Module          types.ModuleID
	Input           schema.Input
	Audience        types.Audience // defaults to the descriptor's audience
	ReferenceAnswer string
}

// RunResult is the outcome of one run. Output and Fields are non-nil exactly
// when Success is true.
type RunResult struct {
	Success          bool                 `json:"success"`
	Output           schema.Output        `json:"output"`
	Fields           map[string]any       `json:"-"`
	RunID            string               `json:"runId"`
	Module           types.ModuleID       `json:"moduleId"`
	PromptVersion    string               `json:"promptVersion"`
	ModelVersion     string               `json:"modelVersion"`
	LatencyMs        int64                `json:"latencyMs"`
	Usage            types.TokenUsage     `json:"tokenUsage"`
	Attempts         int                  `json:"attempts"`
	ValidationErrors []string             `json:"validationErrors"`
	SafetyDecision   types.SafetyDecision `json:"safetyDecision"`
	SafetyReasons    []types.RuleResult   `json:"safetyReasons,omitempty"`
	FailedStage      Stage                `json:"-"`
}

// Runner executes module runs. It holds no per-run state and is safe for
// concurrent use.
type Runner struct {
	catalog   *catalog.Catalog
	prompts   *prompt.Registry
	contracts *contract.Registry
	invoker   Invoker
	parser    *articulation.ResponseParser
	safety    SafetyChecker
	audit     Auditor
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithSafetyChecker replaces the default safety gate.
func WithSafetyChecker(s SafetyChecker) Option { return func(r *Runner) { r.safety = s } }

// WithAuditor replaces the default audit gate.
func WithAuditor(a Auditor) Option { return func(r *Runner) { r.audit = a } }

// WithParser replaces the response parser.
func WithParser(p *articulation.ResponseParser) Option { return func(r *Runner) { r.parser = p } }

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option { return func(r *Runner) { r.tracer = t } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// WithIDGenerator replaces the UUID run id generator.
func WithIDGenerator(f func() string) Option { return func(r *Runner) { r.newID = f } }

// New builds a runner. The registries are injected so tests can substitute fakes.
func New(cat *catalog.Catalog, prompts *prompt.Registry, contracts *contract.Registry, invoker Invoker, opts ...Option) (*Runner, error) {
	if cat == nil || prompts == nil || contracts == nil {
		return nil, errors.New("runner: catalog, prompts and contracts are required")
	}
	if invoker == nil {
		return nil, &perception.ConfigurationError{Provider: "none", Reason: "runner has no invoker"}
	}
	r := &Runner{
		catalog:   cat,
		prompts:   prompts,
		contracts: contracts,
		invoker:   invoker,
		parser:    articulation.NewResponseParser(),
		safety:    safety.DefaultGate(),
		audit:     audit.NewGate(cat),
		tracer:    otel.Tracer("scholarforge/runner"),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Catalog returns the injected module catalog.
func (r *Runner) Catalog() *catalog.Catalog { return r.catalog }

// Contracts returns the injected contract registry.
func (r *Runner) Contracts() *contract.Registry { return r.contracts }

// run carries the state of one in-flight run.
type run struct {
	desc     catalog.Descriptor
	req      RunRequest
	audience types.Audience
	stage    Stage
	started  time.Time
	span     trace.Span
	result   RunResult
}

func (x *run) enter(s Stage) {
	x.stage = s
	x.span.AddEvent(s.String())
}

func (x *run) fail(decision types.SafetyDecision, reasons ...string) RunResult {
	x.result.Success = false
	x.result.Output = nil
	x.result.Fields = nil
	x.result.FailedStage = x.stage
	x.result.SafetyDecision = decision
	x.result.ValidationErrors = append(x.result.ValidationErrors, reasons...)
	x.stage = StageFailed
	return x.result
}

// Run executes the pipeline for req. The returned error is non-nil only for
// configuration faults: unknown module, deterministic module, mismatched input,
// or a provider ConfigurationError.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	desc, ok := r.catalog.Lookup(req.Module)
	if !ok {
		return RunResult{}, fmt.Errorf("%w: %q", ErrUnknownModule, req.Module)
	}
	if !desc.Generative() {
		return RunResult{}, fmt.Errorf("%w: %s", ErrNotGenerative, req.Module)
	}
	if _, ok := r.prompts.Lookup(req.Module); !ok {
		return RunResult{}, fmt.Errorf("%w: %s", ErrNotGenerative, req.Module)
	}
	if req.Input == nil || req.Input.Module() != req.Module {
		return RunResult{}, fmt.Errorf("%w: %T for %s", ErrInputMismatch, req.Input, req.Module)
	}

	audience := req.Audience
	if audience == "" {
		audience = desc.Audience
	}

	ctx, span := r.tracer.Start(ctx, "module.run", trace.WithAttributes(
		attribute.String("module.id", string(desc.ID)),
		attribute.String("module.prompt_version", desc.PromptVersion),
		attribute.String("module.audience", string(audience)),
	))
	defer span.End()

	x := &run{
		desc:     desc,
		req:      req,
		audience: audience,
		started:  r.now(),
		span:     span,
		result: RunResult{
			RunID:            r.newID(),
			Module:           desc.ID,
			PromptVersion:    desc.PromptVersion,
			ValidationErrors: []string{},
			SafetyDecision:   types.DecisionNotApplicable,
		},
	}
	span.SetAttributes(attribute.String("run.id", x.result.RunID))

	res, err := r.execute(ctx, x)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RunResult{}, err
	}
	res.LatencyMs = r.now().Sub(x.started).Milliseconds()
	r.report(span, res)
	return res, nil
}

func (r *Runner) execute(ctx context.Context, x *run) (RunResult, error) {
	x.enter(StageBuildPrompt)
	text, err := r.prompts.Build(x.desc.ID, x.req.Input)
	if err != nil {
		return x.fail(types.DecisionNotApplicable, fmt.Sprintf("prompt: %v", err)), nil
	}

	x.enter(StageInvoke)
	done, err := r.invoker.Invoke(ctx, x.desc, text)
	if err != nil {
		var cfgErr *perception.ConfigurationError
		if errors.As(err, &cfgErr) {
			return RunResult{}, err
		}
		var invErr *perception.InvocationError
		if errors.As(err, &invErr) {
			x.result.Attempts = invErr.Attempts
			return x.fail(types.DecisionNotApplicable, fmt.Sprintf("invocation failed after %d attempts", invErr.Attempts)), nil
		}
		return x.fail(types.DecisionNotApplicable, fmt.Sprintf("invocation aborted: %v", err)), nil
	}
	x.result.ModelVersion = done.ModelVersion
	if x.result.ModelVersion == "" {
		x.result.ModelVersion = done.Model
	}
	x.result.Usage = done.Usage
	x.result.Attempts = done.Attempts

	x.enter(StageParse)
	parsed, err := r.parser.Parse(done.Text)
	if err != nil {
		var pe *articulation.ParseError
		if errors.As(err, &pe) {
			return x.fail(types.DecisionParseError, "parse: "+pe.Reason), nil
		}
		return x.fail(types.DecisionParseError, "parse: "+err.Error()), nil
	}

	// Item-scoped modules gate the envelope here; the caller gates each item.
	fields := parsed.Fields
	if x.desc.ItemScoped() {
		fields = envelope(parsed.Fields, x.desc.ItemsField)
	}
	visible := articulation.VisibleText(fields)

	if err := ctx.Err(); err != nil {
		return x.fail(types.DecisionNotApplicable, fmt.Sprintf("run aborted: %v", err)), nil
	}

	x.enter(StageSafetyCheck)
	verdict := r.safety.Check(schema.SafetyGateInput{
		Text:            visible,
		Audience:        x.audience,
		FieldNames:      articulation.FieldNames(fields),
		ReferenceAnswer: x.req.ReferenceAnswer,
	})
	x.result.SafetyDecision = verdict.Decision
	x.result.SafetyReasons = verdict.Reasons
	if verdict.Decision == types.DecisionBlock {
		return x.fail(types.DecisionBlock, reasonsOf(verdict.Reasons)...), nil
	}

	x.enter(StageAudit)
	report := r.audit.Audit(x.desc, fields, visible)
	if !report.Passed() {
		return x.fail(verdict.Decision, reasonsOf(report.Violations)...), nil
	}

	x.enter(StageContractValidate)
	out, err := r.contracts.Decode(x.desc.ID, parsed.JSON)
	if err != nil {
		return x.fail(verdict.Decision, err.Error()), nil
	}
	out = r.contracts.Normalize(x.desc.ID, out, x.req.Input)
	check := r.contracts.Validate(x.desc.ID, out, x.req.Input)
	if !check.Pass {
		return x.fail(verdict.Decision, check.Reasons...), nil
	}

	x.stage = x.stage.next()
	x.result.Success = true
	x.result.Output = out
	x.result.Fields = parsed.Fields
	return x.result, nil
}

func (r *Runner) report(span trace.Span, res RunResult) {
	span.SetAttributes(
		attribute.Bool("run.success", res.Success),
		attribute.String("run.safety_decision", string(res.SafetyDecision)),
		attribute.Int("run.attempts", res.Attempts),
	)
	log := logging.Get(logging.CategoryRunner)
	if res.Success {
		if res.SafetyDecision == types.DecisionEscalate {
			log.Warn("Run %s %s succeeded with ESCALATE: %s", res.RunID, res.Module, joinReasons(res.SafetyReasons))
		} else {
			log.Info("Run %s %s succeeded in %dms (model=%s tokens=%d)", res.RunID, res.Module, res.LatencyMs, res.ModelVersion, res.Usage.Total())
		}
		return
	}
	span.SetStatus(codes.Error, res.FailedStage.String())
	log.Warn("Run %s %s failed at %s (safety=%s): %d reason(s)", res.RunID, res.Module, res.FailedStage, res.SafetyDecision, len(res.ValidationErrors))
	log.Debug("Run %s reasons: %v", res.RunID, res.ValidationErrors)
}

func envelope(fields map[string]any, itemsField string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == itemsField {
			continue
		}
		out[k] = v
	}
	// Presence of the batch is still a structural requirement.
	if _, ok := fields[itemsField]; ok {
		out[itemsField] = []any{}
	}
	return out
}

func reasonsOf(results []types.RuleResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Reason())
	}
	return out
}

func joinReasons(results []types.RuleResult) string {
	s := ""
	for i, r := range results {
		if i > 0 {
			s += "; "
		}
		s += r.Code
	}
	return s
}
