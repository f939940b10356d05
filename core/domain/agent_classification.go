package domain

// RequestType distinguishes trade (agency) requests from direct travelers.
type RequestType string

const (
	RequestTypeB2B     RequestType = "b2b"
	RequestTypeB2C     RequestType = "b2c"
	RequestTypeUnknown RequestType = "unknown"
)

// Signal is a single named evidence item contributed by a matcher.
type Signal struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// SignalScore is the aggregate output of the regex signal scorer.
type SignalScore struct {
	// Total is the clamped score in [0,100].
	Total int `json:"total"`
	// RawTotal is the unclamped sum, kept for diagnostics.
	RawTotal int `json:"raw_total"`
	// Signals lists every matched pattern in evaluation order.
	Signals []Signal `json:"signals"`
	// TourismHits counts matches that indicate tourism context.
	TourismHits int `json:"tourism_hits"`
	// TourismPoints sums the points of tourism-context matches.
	TourismPoints int `json:"tourism_points"`
	// NegativeHits counts matches from the negative (veto) table.
	NegativeHits int `json:"negative_hits"`
	// HardVeto is set when an automation pattern short-circuits the verdict.
	HardVeto bool `json:"hard_veto"`
}

// SignalNames flattens matched signal names.
func (s *SignalScore) SignalNames() []string {
	names := make([]string, 0, len(s.Signals))
	for _, sig := range s.Signals {
		names = append(names, sig.Name)
	}
	return names
}

// SenderVerdict is the output of the B2B detector.
type SenderVerdict struct {
	Type    RequestType `json:"type"`
	Hits    int         `json:"hits"`
	Signals []string    `json:"signals,omitempty"`
}

// ClassificationVerdict is the final decision for one email.
type ClassificationVerdict struct {
	IsQuote    bool        `json:"is_quote"`
	Actionable bool        `json:"actionable"`
	Confidence int         `json:"confidence"` // always in [0,100]
	Type       RequestType `json:"request_type"`
	Signals    []string    `json:"signals,omitempty"`
	Source     string      `json:"source"` // heuristic | llm | cross-check
	LLMUsed    bool        `json:"llm_used"`
	Reasoning  string      `json:"reasoning,omitempty"`
}
