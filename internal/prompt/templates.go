package prompt

import "scholarforge/internal/types"

// Default returns the registry of builders for every generative module.
func Default() *Registry {
	r, err := NewRegistry(defaultTemplates()...)
	if err != nil {
		panic(err)
	}
	return r
}

const noPersonalData = "Do not include names, identifiers or any personal details beyond what PARAMETERS provides."

func defaultTemplates() []Template {
	return []Template{
		{
			Module: types.ModuleItemGenerator,
			Task: "Write multiple-choice practice items for a young learner. Every item targets the single " +
				"skill and difficulty in PARAMETERS and has exactly one defensible correct option.",
			Output: []Field{
				{"items", "array", "between 1 and PARAMETERS.count entries"},
				{"items[].stem", "string", "the question, one or two short sentences"},
				{"items[].options", "array of 4 strings", "distinct, plausible, non-empty"},
				{"items[].correctIndex", "integer", "0-3, index of the correct option"},
				{"items[].explanation", "string", "why the correct option is correct"},
				{"items[].difficulty", "integer", "must equal PARAMETERS.difficulty"},
				{"items[].skillId", "string", "must equal PARAMETERS.skillId"},
			},
			Forbidden: []string{
				"Praise or evaluative language addressed to the learner.",
				"Hints, tutoring, or notes addressed to a parent.",
				"Medical, diagnostic or comparative ranking language.",
				noPersonalData,
			},
		},
		{
			Module: types.ModuleResponseEvaluator,
			Task: "Judge one learner response to the item in PARAMETERS. selectedIndex is -1 for free-text " +
				"responses; otherwise compare it to correctIndex.",
			Output: []Field{
				{"isCorrect", "boolean", "for multiple choice, exactly selectedIndex == correctIndex"},
				{"score", "number", "0.0-1.0"},
				{"feedback", "string", "one kind, encouraging sentence for the learner"},
				{"errorPattern", "string", "none|conceptual|procedural|careless|unknown; none when correct"},
			},
			Forbidden: []string{
				"Stating the correct answer or option.",
				"Words such as wrong, incorrect, mistake, failed or bad.",
				"Writing new questions or addressing a parent.",
			},
		},
		{
			Module: types.ModuleConfidenceInterpreter,
			Task: "Classify how well the learner's self-reported confidence (1-5) matches their correctness " +
				"on one response.",
			Output: []Field{
				{"calibrationStatus", "string", "calibrated|overconfident|underconfident|unknown"},
				{"confidence", "number", "0.0-1.0, your certainty in the classification"},
				{"interpretation", "string", "one neutral sentence for internal use"},
			},
			Forbidden: []string{
				"Classifying an incorrect answer with confidence 4 or 5 as anything but overconfident.",
				"Classifying a correct answer with confidence 1 or 2 as anything but underconfident.",
				"Feedback or praise addressed to the learner.",
			},
		},
		{
			Module: types.ModuleMasteryEstimator,
			Task:   "Update the mastery estimate for one skill from the prior mastery and the attempts in PARAMETERS.",
			Output: []Field{
				{"mastery", "number", "0.0-1.0"},
				{"confidence", "number", "0.0-1.0"},
				{"evidenceCount", "integer", "exactly the number of attempts supplied"},
				{"level", "string", "emerging (<0.4), developing (<0.6), proficient (<0.85), mastered"},
			},
			Forbidden: []string{
				"Comparisons with other learners, percentiles or grade-level claims.",
				"Predictions or guarantees about future results.",
				"Text addressed to the learner or a parent.",
			},
		},
		{
			Module: types.ModuleTrendMonitor,
			Task:   "Describe the direction of the chronological session accuracies in PARAMETERS.",
			Output: []Field{
				{"trend", "string", "improving|stable|declining|insufficient_data; insufficient_data when fewer than 3 scores"},
				{"plateauFlag", "boolean", "true when accuracy has stopped moving at a sub-mastery level"},
				{"fatigueRisk", "string", "low|medium|high"},
				{"observations", "array of strings", "short neutral observations"},
			},
			Forbidden: []string{
				"Clinical or diagnostic terms.",
				"Predictions or guarantees about future results.",
				"Text addressed to the learner or a parent.",
			},
		},
		{
			Module: types.ModuleMisconceptionDiagnoser,
			Task:   "Identify the conceptual gaps most likely behind the incorrect responses in PARAMETERS.",
			Output: []Field{
				{"misconceptions", "array", "at most 3 entries"},
				{"misconceptions[].code", "string", "short snake_case code"},
				{"misconceptions[].description", "string", "one sentence"},
				{"misconceptions[].evidence", "integer", "number of responses supporting it"},
				{"primaryMisconception", "string", "one of the listed codes, or empty"},
			},
			Forbidden: []string{
				"Clinical, diagnostic or learning-disability labels.",
				"Text addressed to the learner or a parent.",
				noPersonalData,
			},
		},
		{
			Module: types.ModuleTutor,
			Task: "Give the learner one hint for the question in PARAMETERS at the requested scaffold level " +
				"(1 lightest, 4 most explicit). Guide their thinking; the learner must still find the answer.",
			Output: []Field{
				{"hint", "string", "at most 400 characters, addressed to the learner"},
				{"scaffoldLevel", "integer", "must equal PARAMETERS.scaffoldLevel"},
				{"strategy", "string", "refocus|decompose|worked_analogy|narrow_choices"},
				{"mustNotRevealAnswer", "boolean", "always true"},
			},
			Forbidden: []string{
				"Stating, spelling out or computing the answer.",
				"Naming which option to pick.",
				"Words such as wrong, incorrect, mistake, failed or bad.",
				noPersonalData,
			},
		},
		{
			Module: types.ModuleProgressTracker,
			Task:   "Summarise the learner's progress over the period in PARAMETERS for their family.",
			Output: []Field{
				{"summary", "string", "two or three sentences"},
				{"milestones", "array of strings", "concrete achievements"},
				{"skillsImproved", "array of strings", "skill ids from PARAMETERS.skills"},
				{"skillsNeedingPractice", "array of strings", "skill ids from PARAMETERS.skills, disjoint from skillsImproved"},
			},
			Forbidden: []string{
				"Rankings, percentiles or comparisons with other children.",
				"Guarantees about future outcomes.",
				"Answers to practice questions or tutoring hints.",
				noPersonalData,
			},
		},
		{
			Module: types.ModuleParentReporter,
			Task:   "Write a warm, plain-language report for a parent about the period in PARAMETERS.",
			Output: []Field{
				{"headline", "string", "one short line"},
				{"narrative", "string", "at most 1200 characters"},
				{"strengths", "array of strings", ""},
				{"nextSteps", "array of strings", "1 to 3 suggestions for home"},
			},
			Forbidden: []string{
				"Clinical or diagnostic terms.",
				"Rankings, percentiles or comparisons with other children.",
				"Guarantees about future outcomes.",
				"Instructions telling the parent they must make the child practise.",
				noPersonalData,
			},
		},
		{
			Module: types.ModuleCohortAnalyst,
			Task:   "Analyse the anonymous cohort aggregate in PARAMETERS and point out where teaching effort is best spent.",
			Output: []Field{
				{"insights", "array", "one entry per notable skill"},
				{"insights[].skillId", "string", "from PARAMETERS.skills"},
				{"insights[].observation", "string", "one sentence"},
				{"focusSkillIds", "array of strings", "from PARAMETERS.skills"},
				{"atRiskCount", "integer", "0 up to the cohort's learner count"},
			},
			Forbidden: []string{
				"Any reference to individual learners.",
				"Text addressed to a parent or learner.",
				"Guarantees about future outcomes.",
			},
		},
		{
			Module: types.ModuleCoordinationExtractor,
			Task: "Synthesise the prior diagnostics in PARAMETERS into session-composition adjustments. Do not " +
				"write content. The learner's level is fixed.",
			Output: []Field{
				{"schemaVersion", "string", "coordination.v1"},
				{"scope", "object", "subjectId, validFrom, validUntil copied from PARAMETERS"},
				{"signals", "object", "trend, plateauFlag (copied from diagnostics), calibrationStatus, fatigueRisk"},
				{"recommendedAdjustments.supportLevel", "string", "INCREASE|MAINTAIN|DECREASE; INCREASE when plateauFlag"},
				{"recommendedAdjustments.difficultyDelta", "number", "-1.0 to 1.0"},
				{"recommendedAdjustments.sessionMix", "object", "reinforce, target, stretch each 0-1, summing to 1.0"},
				{"recommendedAdjustments.focusSkillIds", "array of strings", "from PARAMETERS.skillIds"},
				{"constraints.lockedLevel", "integer", "must equal PARAMETERS.level"},
				{"constraints.mustNot", "array of strings", "must include \"change_level\""},
				{"decisionRationale", "array of strings", "at least one reason"},
			},
			Forbidden: []string{
				"Questions, hints, feedback or praise.",
				"Any change to the learner's level.",
			},
		},
	}
}
