package model

// MatchConfidence is the coarse bucket summarizing a match score for
// user-facing display and auto-match gating.
type MatchConfidence string

// Confidence tiers.
const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
)

// MatchCandidate is one scored pairing between a transaction and a
// document. Candidates are computed fresh on each query and never
// persisted or cached.
type MatchCandidate struct {
	OtherPartyID string          `json:"other_party_id"`
	Confidence   MatchConfidence `json:"confidence"`
	Score        float64         `json:"score"`
	AmountDiff   float64         `json:"amount_diff"`
	DaysDiff     int             `json:"days_diff"`
}
