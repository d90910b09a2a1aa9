package evo

import (
	"math"

	"seekers/internal/agent"
)

// FitnessSummary aggregates one evaluation pass. All distances are raw.
type FitnessSummary struct {
	Mean           float64
	Best           float64
	Worst          float64
	MeanNormalized float64
	BestIndex      int
}

// normalizeDistance maps raw distance to [0,1]: the worst distance maps to 0
// and zero distance maps to 1. When every agent sits on the target the worst
// distance is 0 and everything maps to 1.
func normalizeDistance(raw, worst float64) float64 {
	if worst <= 0 {
		return 1
	}
	v := 1 - raw/worst
	return math.Max(0, math.Min(1, v))
}

func summarizeFitness(agents []*agent.Agent) FitnessSummary {
	if len(agents) == 0 {
		return FitnessSummary{BestIndex: -1}
	}

	summary := FitnessSummary{
		Best:  agents[0].Fitness(),
		Worst: agents[0].Fitness(),
	}
	total := 0.0
	for i, a := range agents {
		f := a.Fitness()
		total += f
		if f < summary.Best {
			summary.Best = f
			summary.BestIndex = i
		}
		if f > summary.Worst {
			summary.Worst = f
		}
	}
	summary.Mean = total / float64(len(agents))

	totalNormalized := 0.0
	for _, a := range agents {
		n := normalizeDistance(a.Fitness(), summary.Worst)
		a.SetNormalizedFitness(n)
		totalNormalized += n
	}
	summary.MeanNormalized = totalNormalized / float64(len(agents))
	return summary
}
