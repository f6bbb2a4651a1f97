package usage

import "time"

// Data is the root structure stored on disk.
type Data struct {
	Version   string          `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// Event is a single provider invocation.
type Event struct {
	Model    string
	Provider string
	Module   string
	Input    int
	Output   int
	Attempts int
}

// AggregatedStats holds counters broken down by various dimensions.
type AggregatedStats struct {
	Total      TokenCounts            `json:"total"`
	Calls      int64                  `json:"calls"`
	Retries    int64                  `json:"retries"`
	ByProvider map[string]TokenCounts `json:"by_provider"`
	ByModel    map[string]TokenCounts `json:"by_model"`
	ByModule   map[string]TokenCounts `json:"by_module"`
	ByFlow     map[string]TokenCounts `json:"by_flow"`
}

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

func (tc *TokenCounts) Add(input, output int) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
}

func newAggregate() AggregatedStats {
	return AggregatedStats{
		ByProvider: make(map[string]TokenCounts),
		ByModel:    make(map[string]TokenCounts),
		ByModule:   make(map[string]TokenCounts),
		ByFlow:     make(map[string]TokenCounts),
	}
}
