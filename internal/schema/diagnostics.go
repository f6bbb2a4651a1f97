package schema

import "scholarforge/internal/types"

// AttemptSummary is one scored attempt used as mastery evidence.
type AttemptSummary struct {
	Correct        bool `json:"correct"`
	Difficulty     int  `json:"difficulty"`
	ResponseTimeMs int  `json:"responseTimeMs"`
}

// MasteryEstimatorInput carries the recent evidence for one subject and skill.
type MasteryEstimatorInput struct {
	SubjectID    string           `json:"subjectId"`
	SkillID      string           `json:"skillId"`
	PriorMastery float64          `json:"priorMastery"`
	Attempts     []AttemptSummary `json:"attempts"`
}

// MasteryEstimatorOutput is the updated mastery estimate.
type MasteryEstimatorOutput struct {
	Mastery       float64 `json:"mastery"`
	Confidence    float64 `json:"confidence"`
	EvidenceCount int     `json:"evidenceCount"`
	Level         string  `json:"level"`
}

// TrendMonitorInput is a chronological series of session accuracies.
type TrendMonitorInput struct {
	SubjectID string    `json:"subjectId"`
	SkillID   string    `json:"skillId"`
	Scores    []float64 `json:"scores"`
}

// TrendMonitorOutput describes the direction of recent performance.
type TrendMonitorOutput struct {
	Trend        string   `json:"trend"`
	PlateauFlag  bool     `json:"plateauFlag"`
	FatigueRisk  string   `json:"fatigueRisk"`
	Observations []string `json:"observations"`
}

// ErrorSample is one incorrect response shown to the misconception diagnoser.
type ErrorSample struct {
	Stem           string `json:"stem"`
	SelectedOption string `json:"selectedOption"`
	CorrectOption  string `json:"correctOption"`
}

// MisconceptionDiagnoserInput groups recent errors for one skill.
type MisconceptionDiagnoserInput struct {
	SkillID string        `json:"skillId"`
	Errors  []ErrorSample `json:"errors"`
}

// Misconception is one suspected conceptual gap.
type Misconception struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Evidence    int    `json:"evidence"`
}

// MisconceptionDiagnoserOutput lists suspected misconceptions.
type MisconceptionDiagnoserOutput struct {
	Misconceptions       []Misconception `json:"misconceptions"`
	PrimaryMisconception string          `json:"primaryMisconception"`
}

func (MasteryEstimatorInput) Module() types.ModuleID       { return types.ModuleMasteryEstimator }
func (MasteryEstimatorOutput) Module() types.ModuleID      { return types.ModuleMasteryEstimator }
func (TrendMonitorInput) Module() types.ModuleID           { return types.ModuleTrendMonitor }
func (TrendMonitorOutput) Module() types.ModuleID          { return types.ModuleTrendMonitor }
func (MisconceptionDiagnoserInput) Module() types.ModuleID { return types.ModuleMisconceptionDiagnoser }
func (MisconceptionDiagnoserOutput) Module() types.ModuleID {
	return types.ModuleMisconceptionDiagnoser
}

func (MasteryEstimatorInput) sealedInput()         {}
func (MasteryEstimatorOutput) sealedOutput()       {}
func (TrendMonitorInput) sealedInput()             {}
func (TrendMonitorOutput) sealedOutput()           {}
func (MisconceptionDiagnoserInput) sealedInput()   {}
func (MisconceptionDiagnoserOutput) sealedOutput() {}
