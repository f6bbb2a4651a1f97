package schema

import "scholarforge/internal/types"

// SkillSnapshot is a mastery reading for one skill over a reporting period.
type SkillSnapshot struct {
	SkillID      string  `json:"skillId"`
	SkillName    string  `json:"skillName"`
	Mastery      float64 `json:"mastery"`
	PriorMastery float64 `json:"priorMastery"`
}

// ProgressTrackerInput summarises a subject's period of practice.
type ProgressTrackerInput struct {
	SubjectID string          `json:"subjectId"`
	Period    string          `json:"period"`
	Sessions  int             `json:"sessions"`
	Skills    []SkillSnapshot `json:"skills"`
}

// ProgressTrackerOutput is the progress narrative plus skill lists.
type ProgressTrackerOutput struct {
	Summary               string   `json:"summary"`
	Milestones            []string `json:"milestones"`
	SkillsImproved        []string `json:"skillsImproved"`
	SkillsNeedingPractice []string `json:"skillsNeedingPractice"`
}

// ParentReporterInput is what a parent report may draw on. It carries a first
// name only.
type ParentReporterInput struct {
	FirstName        string          `json:"firstName"`
	Period           string          `json:"period"`
	MinutesPracticed int             `json:"minutesPracticed"`
	Highlights       []string        `json:"highlights"`
	Skills           []SkillSnapshot `json:"skills"`
}

// ParentReporterOutput is a parent-facing report.
type ParentReporterOutput struct {
	Headline  string   `json:"headline"`
	Narrative string   `json:"narrative"`
	Strengths []string `json:"strengths"`
	NextSteps []string `json:"nextSteps"`
}

// CohortSkillStat aggregates one skill across a cohort.
type CohortSkillStat struct {
	SkillID     string  `json:"skillId"`
	Learners    int     `json:"learners"`
	MeanMastery float64 `json:"meanMastery"`
	AtRisk      int     `json:"atRisk"`
}

// CohortAnalystInput is an anonymous cohort aggregate.
type CohortAnalystInput struct {
	CohortID string            `json:"cohortId"`
	Skills   []CohortSkillStat `json:"skills"`
}

// TotalLearners returns the largest per-skill learner count.
func (in CohortAnalystInput) TotalLearners() int {
	max := 0
	for _, s := range in.Skills {
		if s.Learners > max {
			max = s.Learners
		}
	}
	return max
}

// CohortInsight is one observation about a cohort skill.
type CohortInsight struct {
	SkillID     string `json:"skillId"`
	Observation string `json:"observation"`
}

// CohortAnalystOutput is the cohort analysis.
type CohortAnalystOutput struct {
	Insights      []CohortInsight `json:"insights"`
	FocusSkillIDs []string        `json:"focusSkillIds"`
	AtRiskCount   int             `json:"atRiskCount"`
}

func (ProgressTrackerInput) Module() types.ModuleID  { return types.ModuleProgressTracker }
func (ProgressTrackerOutput) Module() types.ModuleID { return types.ModuleProgressTracker }
func (ParentReporterInput) Module() types.ModuleID   { return types.ModuleParentReporter }
func (ParentReporterOutput) Module() types.ModuleID  { return types.ModuleParentReporter }
func (CohortAnalystInput) Module() types.ModuleID    { return types.ModuleCohortAnalyst }
func (CohortAnalystOutput) Module() types.ModuleID   { return types.ModuleCohortAnalyst }

func (ProgressTrackerInput) sealedInput()   {}
func (ProgressTrackerOutput) sealedOutput() {}
func (ParentReporterInput) sealedInput()    {}
func (ParentReporterOutput) sealedOutput()  {}
func (CohortAnalystInput) sealedInput()     {}
func (CohortAnalystOutput) sealedOutput()   {}
