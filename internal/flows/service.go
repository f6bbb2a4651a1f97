// Package flows composes module runs into business outcomes: item generation,
// session planning, evaluation, hinting, diagnostics and reporting.
//
// Every flow degrades to deterministic, pre-approved content when a module run
// fails. Callers never see provider text or gate reason codes; errors are
// returned only for configuration faults and store failures.
package flows

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"scholarforge/internal/audit"
	"scholarforge/internal/catalog"
	"scholarforge/internal/contract"
	"scholarforge/internal/logging"
	"scholarforge/internal/orchestrator"
	"scholarforge/internal/runner"
	"scholarforge/internal/safety"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
	"scholarforge/internal/usage"
)

// Runner executes module runs.
type Runner interface {
	Run(ctx context.Context, req runner.RunRequest) (runner.RunResult, error)
	Catalog() *catalog.Catalog
	Contracts() *contract.Registry
}

// Store is the slice of the document store the flows use.
type Store interface {
	orchestrator.Inventory
	GetItem(ctx context.Context, id string) (store.Item, error)
	GetPrivateAnswer(ctx context.Context, itemID string) (store.PrivateAnswer, error)
	WriteApprovedDrafts(ctx context.Context, drafts []store.Draft) ([]string, error)
	SaveCoordination(ctx context.Context, runID, subjectID string, obj schema.CoordinationObject) error
	SaveSessionPlan(ctx context.Context, plan schema.SessionPlan) (string, error)
	SaveDiagnostics(ctx context.Context, subjectID string, d schema.PriorDiagnostics) error
	LatestDiagnostics(ctx context.Context, subjectID string) (store.DiagnosticsRecord, error)
}

// SkillSource resolves skill ids.
type SkillSource interface {
	Get(ctx context.Context, id string) (store.Skill, error)
}

// ItemAuditor audits one element of an item-scoped batch.
type ItemAuditor interface {
	AuditItem(desc catalog.Descriptor, item map[string]any) schema.AuditGateOutput
}

// RunObserver sees every completed run. It may be called concurrently.
type RunObserver func(ctx context.Context, res runner.RunResult)

// DefaultCoordinationWindow is how long a coordination object stays valid.
const DefaultCoordinationWindow = 7 * 24 * time.Hour

// Service runs the domain flows.
type Service struct {
	runner   Runner
	store    Store
	skills   SkillSource
	safety   runner.SafetyChecker
	audit    ItemAuditor
	observe  RunObserver
	now      func() time.Time
	newID    func() string
	validFor time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithSafetyChecker replaces the per-item safety gate.
func WithSafetyChecker(c runner.SafetyChecker) Option { return func(s *Service) { s.safety = c } }

// WithItemAuditor replaces the per-item audit gate.
func WithItemAuditor(a ItemAuditor) Option { return func(s *Service) { s.audit = a } }

// WithRunObserver registers a callback for every completed run.
func WithRunObserver(o RunObserver) Option { return func(s *Service) { s.observe = o } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator replaces the id source for rules-derived coordination objects.
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

// WithCoordinationWindow sets the validity window stamped on coordination requests.
func WithCoordinationWindow(d time.Duration) Option { return func(s *Service) { s.validFor = d } }

// NewService wires a Service.
func NewService(r Runner, st Store, sk SkillSource, opts ...Option) (*Service, error) {
	if r == nil || st == nil || sk == nil {
		return nil, errors.New("flows: runner, store and skill source are required")
	}
	s := &Service{
		runner:   r,
		store:    st,
		skills:   sk,
		safety:   safety.DefaultGate(),
		audit:    audit.NewGate(r.Catalog()),
		now:      time.Now,
		newID:    uuid.NewString,
		validFor: DefaultCoordinationWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// run executes one module run and reports whether it produced trusted output.
// The error is non-nil only for configuration faults.
func (s *Service) run(ctx context.Context, req runner.RunRequest) (runner.RunResult, bool, error) {
	res, err := s.runner.Run(ctx, req)
	if err != nil {
		logging.Get(logging.CategoryFlows).Error("%s run refused: %v", req.Module, err)
		return res, false, err
	}
	if s.observe != nil {
		s.observe(ctx, res)
	}
	if !res.Success {
		logging.FlowsWarn("%s run %s failed at %s; degrading to fallback", req.Module, res.RunID, res.FailedStage)
		for _, reason := range res.ValidationErrors {
			logging.Get(logging.CategoryFlows).Debug("  %s: %s", res.RunID, reason)
		}
	}
	return res, res.Success, nil
}

// flowContext tags ctx for per-flow usage accounting.
func flowContext(ctx context.Context, flow string) context.Context {
	return usage.WithFlow(ctx, flow)
}
