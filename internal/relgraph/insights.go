package relgraph

import "github.com/lodestone-labs/synapse/internal/scoring"

// NoRelationshipsMessage is returned instead of failing when there is
// nothing to aggregate.
const NoRelationshipsMessage = "no relationships found"

// Insights is a pure aggregation over a relationship list.
type Insights struct {
	TypeDistribution     map[scoring.SignalType]int     `json:"type_distribution"`
	StrengthDistribution map[string]int                 `json:"strength_distribution"`
	AverageScores        map[scoring.SignalType]float64 `json:"average_scores"`
	Top                  []Score                        `json:"top_relationships"`
	Message              string                         `json:"message,omitempty"`
}

// GenerateInsights aggregates type and strength distributions, the mean
// score per signal, and the top three relationships by composite score.
func GenerateInsights(scores []Score) Insights {
	if len(scores) == 0 {
		return Insights{Message: NoRelationshipsMessage}
	}

	ins := Insights{
		TypeDistribution:     make(map[scoring.SignalType]int),
		StrengthDistribution: make(map[string]int),
		AverageScores:        make(map[scoring.SignalType]float64),
	}

	counts := make(map[scoring.SignalType]int)
	for _, s := range scores {
		ins.TypeDistribution[s.PrimaryType]++
		ins.StrengthDistribution[s.Strength]++
		for sig, v := range s.Signals {
			ins.AverageScores[sig] += v
			counts[sig]++
		}
	}
	for sig, total := range ins.AverageScores {
		ins.AverageScores[sig] = total / float64(counts[sig])
	}

	top := len(scores)
	if top > 3 {
		top = 3
	}
	ins.Top = append([]Score(nil), scores[:top]...)
	return ins
}
