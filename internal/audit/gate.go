// Package audit implements the deterministic audit gate: schema compliance,
// role purity, and module-specific invariants over a candidate output.
package audit

import (
	"fmt"
	"strings"

	"scholarforge/internal/articulation"
	"scholarforge/internal/catalog"
	"scholarforge/internal/logging"
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

const codeUnknownTarget = "UNKNOWN_TARGET"

// invariant checks one module-specific rule over decoded output fields.
// It returns nil when the rule holds.
type invariant func(fields map[string]any) *violation

type violation struct {
	result types.RuleResult
	// structural violations fail schema compliance; the rest fail role purity.
	structural bool
}

// Gate audits candidate outputs against catalog descriptors.
type Gate struct {
	catalog    *catalog.Catalog
	invariants map[types.ModuleID][]invariant
}

// NewGate builds a gate over cat with the built-in module invariants.
func NewGate(cat *catalog.Catalog) *Gate {
	return &Gate{
		catalog: cat,
		invariants: map[types.ModuleID][]invariant{
			types.ModuleTutor:                 {revealFlagTrue},
			types.ModuleCoordinationExtractor: {levelLockPresent},
		},
	}
}

// Check is the audit_gate module entry point: it resolves the target
// descriptor and audits the full field set.
func (g *Gate) Check(in schema.AuditGateInput) schema.AuditGateOutput {
	desc, ok := g.catalog.Lookup(in.Target)
	if !ok {
		return schema.AuditGateOutput{
			Violations: []types.RuleResult{{Code: codeUnknownTarget, Message: fmt.Sprintf("module %q is not in the catalog", in.Target)}},
		}
	}
	return g.Audit(desc, in.Fields, articulation.VisibleText(in.Fields))
}

// Audit checks fields against desc. text is the decoded visible text that
// role-purity patterns scan; for item-scoped modules the caller passes the
// batch envelope only.
func (g *Gate) Audit(desc catalog.Descriptor, fields map[string]any, text string) schema.AuditGateOutput {
	out := schema.AuditGateOutput{SchemaCompliance: true, RolePurity: true}

	for _, path := range desc.RequiredFields {
		if _, ok := Lookup(fields, path); !ok {
			out.SchemaCompliance = false
			out.Violations = append(out.Violations, types.RuleResult{
				Code: types.CodeMissingField, Message: fmt.Sprintf("required field %q is missing", path),
			})
		}
	}

	g.scanPurity(&out, desc, text)

	for _, check := range g.invariants[desc.ID] {
		v := check(fields)
		if v == nil {
			continue
		}
		if v.structural {
			out.SchemaCompliance = false
		} else {
			out.RolePurity = false
		}
		out.Violations = append(out.Violations, v.result)
	}

	if !out.Passed() {
		logging.Get(logging.CategoryAudit).Info("Audit failed for %s: schema=%t purity=%t violations=%d",
			desc.ID, out.SchemaCompliance, out.RolePurity, len(out.Violations))
	}
	return out
}

// AuditItem checks one element of an item-scoped batch.
func (g *Gate) AuditItem(desc catalog.Descriptor, item map[string]any) schema.AuditGateOutput {
	out := schema.AuditGateOutput{SchemaCompliance: true, RolePurity: true}
	for _, path := range desc.ItemRequiredFields {
		if _, ok := Lookup(item, path); !ok {
			out.SchemaCompliance = false
			out.Violations = append(out.Violations, types.RuleResult{
				Code: types.CodeMissingField, Message: fmt.Sprintf("item field %q is missing", path),
			})
		}
	}
	g.scanPurity(&out, desc, articulation.VisibleText(item))
	return out
}

func (g *Gate) scanPurity(out *schema.AuditGateOutput, desc catalog.Descriptor, text string) {
	for _, re := range desc.ForbiddenPatterns {
		if m := re.FindString(text); m != "" {
			out.RolePurity = false
			out.Violations = append(out.Violations, types.RuleResult{
				Code: types.CodeRoleImpurity, Message: fmt.Sprintf("%s output matched %s (%q)", desc.ID, re.String(), m),
			})
		}
	}
}

// Lookup resolves a dotted path in decoded JSON. A null value counts as absent.
func Lookup(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func revealFlagTrue(fields map[string]any) *violation {
	if v, ok := fields["mustNotRevealAnswer"].(bool); ok && v {
		return nil
	}
	return &violation{result: types.RuleResult{
		Code: types.CodeRevealFlag, Message: "mustNotRevealAnswer must be literally true",
	}}
}

func levelLockPresent(fields map[string]any) *violation {
	raw, _ := Lookup(fields, "constraints.mustNot")
	list, _ := raw.([]any)
	for _, v := range list {
		if s, ok := v.(string); ok && s == schema.LevelLockToken {
			return nil
		}
	}
	return &violation{structural: true, result: types.RuleResult{
		Code: types.CodeLevelLockMissing, Message: fmt.Sprintf("constraints.mustNot must contain %q", schema.LevelLockToken),
	}}
}
