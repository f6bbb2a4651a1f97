package store

import (
	"errors"
	"time"

	"scholarforge/internal/schema"
)

// Item lifecycle statuses.
const (
	StatusDraft         = "draft"
	StatusAgentApproved = "agent_approved"
	StatusLive          = "live"
	StatusRetired       = "retired"
)

// ServableStatuses are the statuses an end user may be shown.
var ServableStatuses = []string{StatusAgentApproved, StatusLive}

// ErrNotFound is returned when a keyed lookup finds nothing.
var ErrNotFound = errors.New("store: not found")

// Item is a question as served to learners. The correct answer lives in a
// separate PrivateAnswer record.
type Item struct {
	ID            string    `json:"id"`
	SkillID       string    `json:"skillId"`
	Domain        string    `json:"domain"`
	Level         int       `json:"level"`
	Difficulty    int       `json:"difficulty"`
	Stem          string    `json:"stem"`
	Options       []string  `json:"options"`
	Explanation   string    `json:"explanation"`
	Status        string    `json:"status"`
	PromptVersion string    `json:"promptVersion"`
	RunID         string    `json:"runId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PrivateAnswer is the answer key for one item.
type PrivateAnswer struct {
	ItemID        string `json:"itemId"`
	CorrectIndex  int    `json:"correctIndex"`
	CorrectOption string `json:"correctOption"`
}

// Draft pairs a new item with its answer record.
type Draft struct {
	Item   Item
	Answer PrivateAnswer
}

// Filter selects servable items. Zero-valued fields do not constrain.
type Filter struct {
	SkillIDs   []string
	Difficulty int
	Domain     string
	Level      int
	ExcludeIDs []string
	Limit      int
}

// Skill is one entry of the skill catalogue.
type Skill struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Domain      string `json:"domain" yaml:"domain"`
	Level       int    `json:"level" yaml:"level"`
	Description string `json:"description" yaml:"description"`
}

// CoordinationRecord is a persisted coordination object.
type CoordinationRecord struct {
	RunID     string
	SubjectID string
	Object    schema.CoordinationObject
	CreatedAt time.Time
}

// DiagnosticsRecord is the latest diagnostic state for a subject.
type DiagnosticsRecord struct {
	SubjectID   string
	Diagnostics schema.PriorDiagnostics
	CreatedAt   time.Time
}

// RunRecord journals one module run on behalf of a caller.
type RunRecord struct {
	RunID            string
	Module           string
	PromptVersion    string
	ModelVersion     string
	Success          bool
	SafetyDecision   string
	LatencyMs        int64
	PromptTokens     int
	CompletionTokens int
	ValidationErrors []string
	CreatedAt        time.Time
}
