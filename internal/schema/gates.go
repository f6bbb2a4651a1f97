package schema

import "scholarforge/internal/types"

// SafetyGateInput is the text the safety gate scans.
type SafetyGateInput struct {
	Text     string         `json:"text"`
	Audience types.Audience `json:"audience"`
	// FieldNames are the object keys of structured output; only the
	// identifier scan reads them.
	FieldNames      []string `json:"fieldNames,omitempty"`
	ReferenceAnswer string   `json:"-"`
}

// SafetyGateOutput is the most severe decision plus every triggered rule.
type SafetyGateOutput struct {
	Decision types.SafetyDecision `json:"decision"`
	Reasons  []types.RuleResult   `json:"reasons"`
}

// AuditGateInput is a candidate output to audit against a module's contract.
type AuditGateInput struct {
	Target types.ModuleID `json:"target"`
	Fields map[string]any `json:"fields"`
}

// AuditGateOutput is the audit report.
type AuditGateOutput struct {
	SchemaCompliance bool               `json:"schemaCompliance"`
	RolePurity       bool               `json:"rolePurity"`
	DriftDetected    bool               `json:"driftDetected"`
	Violations       []types.RuleResult `json:"violations"`
}

// Passed reports whether the audit allows the output to proceed.
func (o AuditGateOutput) Passed() bool {
	return o.SchemaCompliance && o.RolePurity
}

func (SafetyGateInput) Module() types.ModuleID  { return types.ModuleSafetyGate }
func (SafetyGateOutput) Module() types.ModuleID { return types.ModuleSafetyGate }
func (AuditGateInput) Module() types.ModuleID   { return types.ModuleAuditGate }
func (AuditGateOutput) Module() types.ModuleID  { return types.ModuleAuditGate }

func (SafetyGateInput) sealedInput()   {}
func (SafetyGateOutput) sealedOutput() {}
func (AuditGateInput) sealedInput()    {}
func (AuditGateOutput) sealedOutput()  {}
