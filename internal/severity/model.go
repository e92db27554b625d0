package severity

// Level buckets a numeric severity score into a clinical urgency band.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// DefaultBaseScore is assumed when neither the caller nor the model supplies
// a score.
const DefaultBaseScore = 50

// LevelForScore maps a 0-100 score to its level. Ranges are closed on both
// ends: 40 is low, 41 is medium, 80 is high, 81 is critical.
func LevelForScore(score int) Level {
	switch {
	case score <= 40:
		return LevelLow
	case score <= 60:
		return LevelMedium
	case score <= 80:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Assessment is the outcome of severity scoring for a single triage request.
// Immutable once produced.
type Assessment struct {
	Score             int      `json:"score"`
	Level             Level    `json:"level"`
	EmergencyKeywords []string `json:"emergency_keywords,omitempty"`
	RiskFactors       []string `json:"risk_factors,omitempty"`
	Reasoning         string   `json:"reasoning,omitempty"`

	// ShortCircuit is set when the emergency keyword override fired and the
	// external model was bypassed entirely.
	ShortCircuit bool `json:"short_circuit,omitempty"`
}

// ModelResult is what the external severity model returns.
type ModelResult struct {
	Score       int      `json:"score"`
	Reasoning   string   `json:"reasoning"`
	RiskFactors []string `json:"risk_factors,omitempty"`
	RedFlags    []string `json:"red_flags,omitempty"`
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
