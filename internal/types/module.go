// Package types holds the small vocabulary shared by every scholarforge package:
// module identifiers, audiences, safety decisions and rule results.
// It has no dependencies on other internal packages so that it can sit at the
// bottom of the import graph.
package types

import "fmt"

// ModuleID identifies one entry of the fixed module catalog.
type ModuleID string

const (
	ModuleItemGenerator          ModuleID = "item_generator"
	ModuleResponseEvaluator      ModuleID = "response_evaluator"
	ModuleConfidenceInterpreter  ModuleID = "confidence_interpreter"
	ModuleMasteryEstimator       ModuleID = "mastery_estimator"
	ModuleTrendMonitor           ModuleID = "trend_monitor"
	ModuleMisconceptionDiagnoser ModuleID = "misconception_diagnoser"
	ModuleTutor                  ModuleID = "tutor"
	ModuleProgressTracker        ModuleID = "progress_tracker"
	ModuleParentReporter         ModuleID = "parent_reporter"
	ModuleCohortAnalyst          ModuleID = "cohort_analyst"
	ModuleCoordinationExtractor  ModuleID = "coordination_extractor"

	// Deterministic rules engines.
	ModuleOrchestrator ModuleID = "orchestrator"
	ModuleSafetyGate   ModuleID = "safety_gate"
	ModuleAuditGate    ModuleID = "audit_gate"
)

// AllModules lists the catalog in canonical order.
var AllModules = []ModuleID{
	ModuleItemGenerator,
	ModuleResponseEvaluator,
	ModuleConfidenceInterpreter,
	ModuleMasteryEstimator,
	ModuleTrendMonitor,
	ModuleMisconceptionDiagnoser,
	ModuleTutor,
	ModuleProgressTracker,
	ModuleParentReporter,
	ModuleCohortAnalyst,
	ModuleCoordinationExtractor,
	ModuleOrchestrator,
	ModuleSafetyGate,
	ModuleAuditGate,
}

// ParseModuleID validates a raw identifier against the catalog.
func ParseModuleID(raw string) (ModuleID, error) {
	for _, id := range AllModules {
		if string(id) == raw {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown module id %q", raw)
}

// Kind is the implementation kind of a module.
type Kind string

const (
	KindGenerative    Kind = "GENERATIVE"
	KindDeterministic Kind = "DETERMINISTIC"
)

// Audience is who will ultimately read a module's output.
type Audience string

const (
	AudienceChild  Audience = "CHILD"
	AudienceParent Audience = "PARENT"
	AudienceSystem Audience = "SYSTEM"
)

// ParseAudience maps a case-sensitive audience name to an Audience.
func ParseAudience(raw string) (Audience, error) {
	switch Audience(raw) {
	case AudienceChild, AudienceParent, AudienceSystem:
		return Audience(raw), nil
	}
	return "", fmt.Errorf("unknown audience %q", raw)
}

// Tier selects a model class for a module.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierDeep     Tier = "deep"
)
