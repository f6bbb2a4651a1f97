package schema

import "scholarforge/internal/types"

// ItemGeneratorInput requests a batch of multiple-choice items for one skill.
type ItemGeneratorInput struct {
	SkillID     string `json:"skillId"`
	SkillName   string `json:"skillName"`
	Domain      string `json:"domain"`
	Level       int    `json:"level"`
	Difficulty  int    `json:"difficulty"`
	Count       int    `json:"count"`
	Description string `json:"description,omitempty"`
}

// GeneratedItem is one candidate multiple-choice item.
type GeneratedItem struct {
	Stem         string   `json:"stem"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
	Difficulty   int      `json:"difficulty"`
	SkillID      string   `json:"skillId"`
}

// CorrectOption returns the option text at CorrectIndex, or "" when out of range.
func (g GeneratedItem) CorrectOption() string {
	if g.CorrectIndex < 0 || g.CorrectIndex >= len(g.Options) {
		return ""
	}
	return g.Options[g.CorrectIndex]
}

// ItemGeneratorOutput is a batch of candidate items.
type ItemGeneratorOutput struct {
	Items []GeneratedItem `json:"items"`
}

// ResponseEvaluatorInput describes a learner's response to one item.
// SelectedIndex is -1 for free-text responses.
type ResponseEvaluatorInput struct {
	ItemID        string   `json:"itemId"`
	SkillID       string   `json:"skillId"`
	Stem          string   `json:"stem"`
	Options       []string `json:"options,omitempty"`
	CorrectIndex  int      `json:"correctIndex"`
	SelectedIndex int      `json:"selectedIndex"`
	ResponseText  string   `json:"responseText,omitempty"`
}

// MultipleChoice reports whether the response selected one of the options.
func (in ResponseEvaluatorInput) MultipleChoice() bool {
	return in.SelectedIndex >= 0 && len(in.Options) > 0
}

// ResponseEvaluatorOutput is the evaluator's judgement of a response.
type ResponseEvaluatorOutput struct {
	IsCorrect    bool    `json:"isCorrect"`
	Score        float64 `json:"score"`
	Feedback     string  `json:"feedback"`
	ErrorPattern string  `json:"errorPattern"`
}

// ConfidenceInterpreterInput pairs correctness with the learner's self-rating.
type ConfidenceInterpreterInput struct {
	SkillID                string `json:"skillId"`
	IsCorrect              bool   `json:"isCorrect"`
	SelfReportedConfidence int    `json:"selfReportedConfidence"`
	ResponseTimeMs         int    `json:"responseTimeMs"`
}

// ConfidenceInterpreterOutput classifies the learner's calibration.
type ConfidenceInterpreterOutput struct {
	CalibrationStatus string  `json:"calibrationStatus"`
	Confidence        float64 `json:"confidence"`
	Interpretation    string  `json:"interpretation"`
}

// TutorInput is everything the tutor may see. The reference answer is
// deliberately absent: it travels only on the run request.
type TutorInput struct {
	SkillName      string `json:"skillName"`
	Stem           string `json:"stem"`
	StudentAttempt string `json:"studentAttempt,omitempty"`
	ScaffoldLevel  int    `json:"scaffoldLevel"`
}

// TutorOutput is one scaffolded hint.
type TutorOutput struct {
	Hint                string `json:"hint"`
	ScaffoldLevel       int    `json:"scaffoldLevel"`
	Strategy            string `json:"strategy"`
	MustNotRevealAnswer bool   `json:"mustNotRevealAnswer"`
}

func (ItemGeneratorInput) Module() types.ModuleID          { return types.ModuleItemGenerator }
func (ItemGeneratorOutput) Module() types.ModuleID         { return types.ModuleItemGenerator }
func (ResponseEvaluatorInput) Module() types.ModuleID      { return types.ModuleResponseEvaluator }
func (ResponseEvaluatorOutput) Module() types.ModuleID     { return types.ModuleResponseEvaluator }
func (ConfidenceInterpreterInput) Module() types.ModuleID  { return types.ModuleConfidenceInterpreter }
func (ConfidenceInterpreterOutput) Module() types.ModuleID { return types.ModuleConfidenceInterpreter }
func (TutorInput) Module() types.ModuleID                  { return types.ModuleTutor }
func (TutorOutput) Module() types.ModuleID                 { return types.ModuleTutor }

func (ItemGeneratorInput) sealedInput()           {}
func (ItemGeneratorOutput) sealedOutput()         {}
func (ResponseEvaluatorInput) sealedInput()       {}
func (ResponseEvaluatorOutput) sealedOutput()     {}
func (ConfidenceInterpreterInput) sealedInput()   {}
func (ConfidenceInterpreterOutput) sealedOutput() {}
func (TutorInput) sealedInput()                   {}
func (TutorOutput) sealedOutput()                 {}
