package types

// Metrics are the six named quality scores, each in [0,10].
type Metrics struct {
	AverageArgumentQuality  float64 `json:"averageArgumentQuality"`
	ClashEngagement         float64 `json:"clashEngagement"`
	StructuralCoherence     float64 `json:"structuralCoherence"`
	EvidenceUsage           float64 `json:"evidenceUsage"`
	RhetoricalEffectiveness float64 `json:"rhetoricalEffectiveness"`
	StrategicAwareness      float64 `json:"strategicAwareness"`
}

// MetricNames lists the wire names in score card order.
var MetricNames = []string{
	"averageArgumentQuality",
	"clashEngagement",
	"structuralCoherence",
	"evidenceUsage",
	"rhetoricalEffectiveness",
	"strategicAwareness",
}

// Named returns the metrics keyed by their wire names.
func (m Metrics) Named() map[string]float64 {
	return map[string]float64{
		"averageArgumentQuality":  m.AverageArgumentQuality,
		"clashEngagement":         m.ClashEngagement,
		"structuralCoherence":     m.StructuralCoherence,
		"evidenceUsage":           m.EvidenceUsage,
		"rhetoricalEffectiveness": m.RhetoricalEffectiveness,
		"strategicAwareness":      m.StrategicAwareness,
	}
}

// Report is the grading collaborator's verdict on a round.
type Report struct {
	Metrics      Metrics  `json:"performanceMetrics"`
	OverallScore float64  `json:"overallScore"`
	Ranking      int      `json:"ranking"`
	Improvements []string `json:"improvements"`
}

// Grade maps a score onto the letter ladder shown on the score card.
func Grade(score float64) string {
	switch {
	case score >= 9:
		return "A+"
	case score >= 8:
		return "A"
	case score >= 7:
		return "B+"
	case score >= 6:
		return "B"
	case score >= 5:
		return "C+"
	default:
		return "C"
	}
}

func RankingLabel(rank int) string {
	switch rank {
	case 1:
		return "1st Place"
	case 2:
		return "2nd Place"
	case 3:
		return "3rd Place"
	default:
		return "4th Place"
	}
}

// Badges lists achievement badges earned for metrics of 8 or above.
func Badges(m Metrics) []string {
	var out []string
	if m.AverageArgumentQuality >= 8 {
		out = append(out, "Strong Arguments")
	}
	if m.ClashEngagement >= 8 {
		out = append(out, "Clash Master")
	}
	if m.StructuralCoherence >= 8 {
		out = append(out, "Well Structured")
	}
	if m.StrategicAwareness >= 8 {
		out = append(out, "Strategic Thinker")
	}
	return out
}
