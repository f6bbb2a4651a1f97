// Package safety implements the deterministic safety gate: an ordered text scan
// that protects children and parents from unsafe generated content.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"scholarforge/internal/logging"
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

// Gate scans generated text. It holds only compiled patterns and is safe for
// concurrent use.
type Gate struct {
	banned     []bannedRule
	judgement  *regexp.Regexp
	identifier *regexp.Regexp
}

// NewGate compiles lex into a gate.
func NewGate(lex Lexicon) (*Gate, error) {
	banned, judgement, identifier, err := lex.compile()
	if err != nil {
		return nil, fmt.Errorf("safety: %w", err)
	}
	return &Gate{banned: banned, judgement: judgement, identifier: identifier}, nil
}

// DefaultGate returns a gate over DefaultLexicon.
func DefaultGate() *Gate {
	g, err := NewGate(DefaultLexicon())
	if err != nil {
		panic(err)
	}
	return g
}

// Check runs the scans in fixed order and returns the most severe decision with
// every triggered rule:
//
//  1. banned phrases (all audiences) → BLOCK
//  2. answer reveal (CHILD with a reference answer) → BLOCK
//  3. judgement language (CHILD) → ESCALATE
//  4. identifier field names in the text or FieldNames (CHILD, PARENT) → BLOCK
func (g *Gate) Check(in schema.SafetyGateInput) schema.SafetyGateOutput {
	out := schema.SafetyGateOutput{Decision: types.DecisionAllow}
	seen := make(map[string]bool)
	trigger := func(d types.SafetyDecision, code, msg string) {
		out.Decision = out.Decision.MoreSevere(d)
		if seen[code] {
			return
		}
		seen[code] = true
		out.Reasons = append(out.Reasons, types.RuleResult{Pass: false, Code: code, Message: msg})
	}

	for _, rule := range g.banned {
		if m := rule.re.FindString(in.Text); m != "" {
			trigger(types.DecisionBlock, rule.code, fmt.Sprintf("%s (%q)", rule.message, strings.TrimSpace(m)))
		}
	}

	if in.Audience == types.AudienceChild {
		if Reveals(in.Text, in.ReferenceAnswer) {
			trigger(types.DecisionBlock, types.CodeAnswerReveal, "text contains the reference answer")
		}
		if g.judgement != nil {
			if m := g.judgement.FindString(in.Text); m != "" {
				trigger(types.DecisionEscalate, types.CodeJudgement, fmt.Sprintf("judgement language (%q)", strings.TrimSpace(m)))
			}
		}
	}

	if g.identifier != nil && in.Audience != types.AudienceSystem {
		for _, s := range append([]string{in.Text}, in.FieldNames...) {
			if m := g.identifier.FindString(s); m != "" {
				trigger(types.DecisionBlock, types.CodeIdentifierLeak, fmt.Sprintf("identifier field %q", m))
				break
			}
		}
	}

	if out.Decision != types.DecisionAllow {
		logging.Get(logging.CategorySafety).Info("Safety %s for %s audience: %d rule(s) triggered",
			out.Decision, in.Audience, len(out.Reasons))
	}
	return out
}

// Reveals reports whether text contains the reference answer, ignoring case
// and differences in whitespace.
func Reveals(text, reference string) bool {
	ref := normalizeAnswer(reference)
	return ref != "" && strings.Contains(normalizeAnswer(text), ref)
}

func normalizeAnswer(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
