package types

// SafetyDecision is the outcome recorded on every RunResult.
type SafetyDecision string

const (
	DecisionAllow    SafetyDecision = "ALLOW"
	DecisionEscalate SafetyDecision = "ESCALATE"
	DecisionBlock    SafetyDecision = "BLOCK"
	// DecisionNotApplicable is used when no text ever reached the safety stage.
	DecisionNotApplicable SafetyDecision = "N/A"
	// DecisionParseError marks runs whose provider output could not be decoded.
	DecisionParseError SafetyDecision = "PARSE_ERROR"
)

// Severity orders gate decisions: BLOCK > ESCALATE > ALLOW.
// Non-gate markers rank below ALLOW.
func (d SafetyDecision) Severity() int {
	switch d {
	case DecisionBlock:
		return 3
	case DecisionEscalate:
		return 2
	case DecisionAllow:
		return 1
	default:
		return 0
	}
}

// MoreSevere returns whichever of d and other is more severe.
func (d SafetyDecision) MoreSevere(other SafetyDecision) SafetyDecision {
	if other.Severity() > d.Severity() {
		return other
	}
	return d
}

// RuleResult is the uniform outcome of one gate rule. Safety and audit rules
// both produce these so their violations compose into one reason list.
type RuleResult struct {
	Pass    bool   `json:"pass"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reason renders the rule result as a human-readable validation error.
func (r RuleResult) Reason() string {
	if r.Message == "" {
		return r.Code
	}
	return r.Code + ": " + r.Message
}

// TokenUsage captures provider token accounting for one invocation.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int {
	return u.Prompt + u.Completion
}

// Add accumulates another usage record.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
}

// Stable reason codes emitted by the safety and audit gates.
const (
	CodeBannedClinical   = "BANNED_CLINICAL"
	CodeBannedRanking    = "BANNED_RANKING"
	CodeBannedGuarantee  = "BANNED_GUARANTEE"
	CodeAnswerReveal     = "ANSWER_REVEAL"
	CodeJudgement        = "JUDGEMENT_LANGUAGE"
	CodeIdentifierLeak   = "IDENTIFIER_LEAK"
	CodeMissingField     = "MISSING_FIELD"
	CodeRoleImpurity     = "ROLE_IMPURITY"
	CodeRevealFlag       = "REVEAL_FLAG_NOT_TRUE"
	CodeLevelLockMissing = "LEVEL_LOCK_MISSING"
)
