package agent

import (
	"fmt"
	"math/rand"

	"seekers/internal/genome"
	"seekers/internal/model"
)

const (
	colorMin = 30
	colorMax = 256
)

// Agent replays its genome one command per tick and remembers how close it
// ended up to the target.
type Agent struct {
	cfg        SimulationConfig
	genome     genome.Genome
	velocities []model.Vec2
	position   model.Vec2
	cursor     int
	alive      bool
	color      model.Color

	fitness    float64
	normalized float64
}

// New builds a live agent around g. The agent takes ownership of g.
func New(rng *rand.Rand, cfg SimulationConfig, g genome.Genome, color model.Color) *Agent {
	a := &Agent{
		cfg:        cfg,
		genome:     g,
		velocities: make([]model.Vec2, len(g)),
		position:   cfg.spawnPosition(rng),
		alive:      true,
		color:      color,
	}
	for i, d := range g {
		a.velocities[i] = d.Velocity(cfg.Speed)
	}
	return a
}

// NewRandom creates an agent with genomeLength uniformly random commands and
// a random color.
func NewRandom(rng *rand.Rand, cfg SimulationConfig, genomeLength int) *Agent {
	return New(rng, cfg, genome.Random(rng, genomeLength), RandomColor(rng))
}

func RandomColor(rng *rand.Rand) model.Color {
	return model.Color{
		R: uint8(colorMin + rng.Intn(colorMax-colorMin)),
		G: uint8(colorMin + rng.Intn(colorMax-colorMin)),
		B: uint8(colorMin + rng.Intn(colorMax-colorMin)),
	}
}

// Step advances the agent by its next command. Once the genome is exhausted
// the agent is dead and further calls do nothing.
func (a *Agent) Step() {
	if !a.alive || a.cursor >= len(a.genome) {
		a.alive = false
		return
	}
	a.position = a.cfg.Clamp(a.position.Add(a.velocities[a.cursor]))
	a.cursor++
	if a.cursor == len(a.genome) {
		a.alive = false
	}
}

// EvaluateFitness stores and returns the raw fitness: the distance between
// the agent and the target.
func (a *Agent) EvaluateFitness() float64 {
	a.fitness = a.position.Distance(a.cfg.Target)
	return a.fitness
}

// SetNormalizedFitness records the population-relative fitness in [0,1].
func (a *Agent) SetNormalizedFitness(v float64) {
	a.normalized = v
}

// Crossover builds a child whose first half comes from a and second half from
// other. The child keeps a's color and spawn policy and starts fresh.
func (a *Agent) Crossover(rng *rand.Rand, other *Agent) (*Agent, error) {
	g, err := genome.Crossover(a.genome, other.genome)
	if err != nil {
		return nil, fmt.Errorf("crossover: %w", err)
	}
	return New(rng, a.cfg, g, a.color), nil
}

// Mutate perturbs each command with probability rate and keeps the cached
// velocities in sync.
func (a *Agent) Mutate(rng *rand.Rand, rate float64) {
	for _, i := range a.genome.Mutate(rng, rate) {
		a.velocities[i] = a.genome[i].Velocity(a.cfg.Speed)
	}
}

func (a *Agent) Position() model.Vec2 {
	return a.position
}

func (a *Agent) Color() model.Color {
	return a.color
}

func (a *Agent) Alive() bool {
	return a.alive
}

func (a *Agent) Cursor() int {
	return a.cursor
}

// Genome returns a copy of the agent's commands.
func (a *Agent) Genome() genome.Genome {
	return a.genome.Clone()
}

func (a *Agent) GenomeLength() int {
	return len(a.genome)
}

// Fitness is the raw distance computed by the last EvaluateFitness call.
func (a *Agent) Fitness() float64 {
	return a.fitness
}

func (a *Agent) NormalizedFitness() float64 {
	return a.normalized
}
