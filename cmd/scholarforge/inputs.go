package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

// inputDecoders decode a module's typed input from JSON. Unknown fields are
// rejected so a typo never silently drops a value.
var inputDecoders = map[types.ModuleID]func([]byte) (schema.Input, error){
	types.ModuleItemGenerator:          decodeInput[schema.ItemGeneratorInput],
	types.ModuleResponseEvaluator:      decodeInput[schema.ResponseEvaluatorInput],
	types.ModuleConfidenceInterpreter:  decodeInput[schema.ConfidenceInterpreterInput],
	types.ModuleMasteryEstimator:       decodeInput[schema.MasteryEstimatorInput],
	types.ModuleTrendMonitor:           decodeInput[schema.TrendMonitorInput],
	types.ModuleMisconceptionDiagnoser: decodeInput[schema.MisconceptionDiagnoserInput],
	types.ModuleTutor:                  decodeInput[schema.TutorInput],
	types.ModuleProgressTracker:        decodeInput[schema.ProgressTrackerInput],
	types.ModuleParentReporter:         decodeInput[schema.ParentReporterInput],
	types.ModuleCohortAnalyst:          decodeInput[schema.CohortAnalystInput],
	types.ModuleCoordinationExtractor:  decodeInput[schema.CoordinationExtractorInput],
	types.ModuleOrchestrator:           decodeInput[schema.OrchestratorInput],
	types.ModuleSafetyGate:             decodeInput[schema.SafetyGateInput],
	types.ModuleAuditGate:              decodeInput[schema.AuditGateInput],
}

func decodeInput[T schema.Input](raw []byte) (schema.Input, error) {
	var in T
	if err := decodeStrict(raw, &in); err != nil {
		return nil, err
	}
	return in, nil
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid input JSON: %w", err)
	}
	return nil
}

// moduleInput decodes raw as the input of module id.
func moduleInput(id types.ModuleID, raw []byte) (schema.Input, error) {
	decode, ok := inputDecoders[id]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", id)
	}
	return decode(raw)
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("an input file is required (use - for stdin)")
	}
	if path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return raw, nil
}
