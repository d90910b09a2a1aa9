package evo

import (
	"math"
	"math/rand"

	"seekers/internal/agent"
)

const (
	SelectionMatingPool      = "mating_pool"
	SelectionUniformFallback = "uniform_fallback"
)

// matingPoolScale is the number of pool entries an agent with normalized
// fitness 1 receives.
const matingPoolScale = 100

// MatingPool is a multiset of agent references sized by normalized fitness.
type MatingPool []*agent.Agent

// BuildMatingPool inserts floor(normalized*100) references per agent. Agents
// at normalized fitness 0 are never inserted.
func BuildMatingPool(agents []*agent.Agent) MatingPool {
	size := 0
	for _, a := range agents {
		size += copiesFor(a)
	}
	pool := make(MatingPool, 0, size)
	for _, a := range agents {
		for n := copiesFor(a); n > 0; n-- {
			pool = append(pool, a)
		}
	}
	return pool
}

// copiesFor returns 0 for a normalized fitness outside [0,1], NaN included.
func copiesFor(a *agent.Agent) int {
	v := a.NormalizedFitness()
	if !(v >= 0 && v <= 1) {
		return 0
	}
	return int(math.Floor(v * matingPoolScale))
}

// Distinct returns the number of different agents referenced by the pool.
func (p MatingPool) Distinct() int {
	seen := make(map[*agent.Agent]struct{}, len(p))
	for _, entry := range p {
		seen[entry] = struct{}{}
	}
	return len(seen)
}

// parentPicker draws parent pairs for one reproduction pass. Partners are
// always distinct by identity when more than one agent exists.
type parentPicker struct {
	source   []*agent.Agent
	prior    []*agent.Agent
	distinct int
	mode     string
}

func newParentPicker(pool MatingPool, prior []*agent.Agent) parentPicker {
	if len(pool) == 0 {
		return parentPicker{
			source:   prior,
			prior:    prior,
			distinct: len(prior),
			mode:     SelectionUniformFallback,
		}
	}
	return parentPicker{
		source:   pool,
		prior:    prior,
		distinct: pool.Distinct(),
		mode:     SelectionMatingPool,
	}
}

func (p parentPicker) pick(rng *rand.Rand) (*agent.Agent, *agent.Agent) {
	a := p.source[rng.Intn(len(p.source))]
	switch {
	case p.distinct >= 2:
		return a, redrawDistinct(rng, p.source, a)
	case len(p.prior) >= 2:
		// Only one agent made it into the pool; partner comes from the rest.
		return a, redrawDistinct(rng, p.prior, a)
	default:
		return a, a
	}
}

func redrawDistinct(rng *rand.Rand, from []*agent.Agent, a *agent.Agent) *agent.Agent {
	b := from[rng.Intn(len(from))]
	for b == a {
		b = from[rng.Intn(len(from))]
	}
	return b
}
