package runner

// Stage is one state of the module run pipeline. Stages run strictly in
// declaration order; any stage may short-circuit to StageFailed.
type Stage int

const (
	StageBuildPrompt Stage = iota
	StageInvoke
	StageParse
	StageSafetyCheck
	StageAudit
	StageContractValidate
	StageSuccess
	StageFailed
)

var stageNames = [...]string{
	StageBuildPrompt:      "BUILD_PROMPT",
	StageInvoke:           "INVOKE",
	StageParse:            "PARSE",
	StageSafetyCheck:      "SAFETY_CHECK",
	StageAudit:            "AUDIT",
	StageContractValidate: "CONTRACT_VALIDATE",
	StageSuccess:          "SUCCESS",
	StageFailed:           "FAILED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

// next returns the stage that follows s on the success path.
func (s Stage) next() Stage {
	if s >= StageContractValidate {
		return StageSuccess
	}
	return s + 1
}
