// Package contract holds the per-module output contracts: required fields,
// role-purity patterns, and the business-rule validator for each module.
//
// Validators never fail loudly. They accumulate human-readable reasons and the
// registry folds them into a Verdict.
package contract

import (
	"encoding/json"
	"fmt"
	"regexp"

	"scholarforge/internal/catalog"
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

// Verdict is the outcome of validating one candidate output.
type Verdict struct {
	Pass    bool
	Reasons []string
}

func verdictOf(reasons []string) Verdict {
	return Verdict{Pass: len(reasons) == 0, Reasons: reasons}
}

// Contract binds a module to its typed decoder and validator.
type Contract struct {
	Module types.ModuleID

	decode    func(raw []byte) (schema.Output, error)
	normalize func(out schema.Output, in schema.Input) schema.Output
	validate  func(out schema.Output, in schema.Input) []string
}

// typed builds a Contract whose validator sees the concrete input/output pair.
func typed[I schema.Input, O schema.Output](id types.ModuleID, validate func(O, I) []string) Contract {
	return Contract{
		Module: id,
		decode: func(raw []byte) (schema.Output, error) {
			var out O
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		validate: func(out schema.Output, in schema.Input) []string {
			o, ok := out.(O)
			if !ok {
				var want O
				return []string{fmt.Sprintf("output is %T, want %T", out, want)}
			}
			i, ok := in.(I)
			if !ok {
				var want I
				return []string{fmt.Sprintf("input is %T, want %T", in, want)}
			}
			return validate(o, i)
		},
	}
}

// withNormalize attaches a hook applied to the decoded output before validation.
func withNormalize[I schema.Input, O schema.Output](c Contract, fn func(O, I) O) Contract {
	c.normalize = func(out schema.Output, in schema.Input) schema.Output {
		o, ok := out.(O)
		if !ok {
			return out
		}
		i, ok := in.(I)
		if !ok {
			return out
		}
		return fn(o, i)
	}
	return c
}

// Registry is the immutable module-id → contract lookup.
type Registry struct {
	catalog   *catalog.Catalog
	contracts map[types.ModuleID]Contract
}

// NewRegistry builds a registry over cat. Every contract must name a catalog module.
func NewRegistry(cat *catalog.Catalog, contracts ...Contract) (*Registry, error) {
	byID := make(map[types.ModuleID]Contract, len(contracts))
	for _, c := range contracts {
		if _, ok := cat.Lookup(c.Module); !ok {
			return nil, fmt.Errorf("contract: %s is not in the catalog", c.Module)
		}
		if _, dup := byID[c.Module]; dup {
			return nil, fmt.Errorf("contract: duplicate contract for %s", c.Module)
		}
		byID[c.Module] = c
	}
	return &Registry{catalog: cat, contracts: byID}, nil
}

// Default returns the registry with one contract per catalog module.
func Default(cat *catalog.Catalog) *Registry {
	r, err := NewRegistry(cat, defaultContracts()...)
	if err != nil {
		panic(err)
	}
	return r
}

func defaultContracts() []Contract {
	return []Contract{
		typed(types.ModuleItemGenerator, validateItemBatch),
		typed(types.ModuleResponseEvaluator, validateEvaluation),
		typed(types.ModuleConfidenceInterpreter, validateConfidence),
		typed(types.ModuleMasteryEstimator, validateMastery),
		typed(types.ModuleTrendMonitor, validateTrend),
		typed(types.ModuleMisconceptionDiagnoser, validateMisconceptions),
		typed(types.ModuleTutor, validateHint),
		typed(types.ModuleProgressTracker, validateProgress),
		typed(types.ModuleParentReporter, validateParentReport),
		typed(types.ModuleCohortAnalyst, validateCohort),
		withNormalize(typed(types.ModuleCoordinationExtractor, validateCoordination), normalizeCoordination),
		typed(types.ModuleOrchestrator, validateSessionPlan),
		typed(types.ModuleSafetyGate, validateSafetyReport),
		typed(types.ModuleAuditGate, validateAuditReport),
	}
}

// Has reports whether a contract exists for id.
func (r *Registry) Has(id types.ModuleID) bool {
	_, ok := r.contracts[id]
	return ok
}

// RequiredFields returns the dotted field paths the module's output must carry.
func (r *Registry) RequiredFields(id types.ModuleID) []string {
	d, ok := r.catalog.Lookup(id)
	if !ok {
		return nil
	}
	return append([]string(nil), d.RequiredFields...)
}

// ForbiddenPatterns returns the module's role-purity patterns.
func (r *Registry) ForbiddenPatterns(id types.ModuleID) []*regexp.Regexp {
	d, ok := r.catalog.Lookup(id)
	if !ok {
		return nil
	}
	return append([]*regexp.Regexp(nil), d.ForbiddenPatterns...)
}

// Decode turns canonical JSON into the module's typed output.
func (r *Registry) Decode(id types.ModuleID, raw []byte) (schema.Output, error) {
	c, ok := r.contracts[id]
	if !ok {
		return nil, fmt.Errorf("contract: no contract for %s", id)
	}
	out, err := c.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", id, err)
	}
	return out, nil
}

// Normalize applies the module's normalisation hook, if any.
func (r *Registry) Normalize(id types.ModuleID, out schema.Output, in schema.Input) schema.Output {
	c, ok := r.contracts[id]
	if !ok || c.normalize == nil {
		return out
	}
	return c.normalize(out, in)
}

// Validate runs the module's business rules against out, given the input that
// produced it.
func (r *Registry) Validate(id types.ModuleID, out schema.Output, in schema.Input) Verdict {
	c, ok := r.contracts[id]
	if !ok {
		return verdictOf([]string{fmt.Sprintf("no contract for module %s", id)})
	}
	if out == nil {
		return verdictOf([]string{"output is missing"})
	}
	return verdictOf(c.validate(out, in))
}

// ValidateItem checks one generated item against the batch request.
func (r *Registry) ValidateItem(in schema.ItemGeneratorInput, item schema.GeneratedItem) Verdict {
	return verdictOf(itemProblems(in, item))
}
