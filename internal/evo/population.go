package evo

import (
	"context"
	"fmt"
	"math/rand"

	"seekers/internal/agent"
	"seekers/internal/genome"
	"seekers/internal/model"
)

// EpochReport describes a generation that has just been evaluated and
// replaced.
type EpochReport struct {
	model.GenerationReport
	Champion Champion
}

// Champion is a snapshot of the closest agent of an evaluated generation.
type Champion struct {
	Fitness  float64
	Position model.Vec2
	Color    model.Color
	Genome   genome.Genome
}

// Population owns one generation of agents and produces the next one.
// It is driven by a single caller and is not safe for concurrent use.
type Population struct {
	cfg Config
	rng *rand.Rand

	agents     []*agent.Agent
	generation int
	ticks      int
	evaluated  bool
	summary    FitnessSummary
}

// NewPopulation validates cfg and populates generation 0 with random agents.
func NewPopulation(cfg Config, rng *rand.Rand) (*Population, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}

	agents := make([]*agent.Agent, cfg.PopulationSize)
	for i := range agents {
		agents[i] = agent.NewRandom(rng, cfg.Simulation, cfg.GenomeLength)
	}
	p := &Population{cfg: cfg, rng: rng}
	p.populate(agents)
	return p, nil
}

// NewPopulationFromGenomes populates generation 0 from explicit genomes. The
// genomes are copied.
func NewPopulationFromGenomes(cfg Config, rng *rand.Rand, genomes []genome.Genome) (*Population, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if len(genomes) != cfg.PopulationSize {
		return nil, fmt.Errorf("%w: seeded genome count mismatch: got=%d want=%d", ErrInvalidConfig, len(genomes), cfg.PopulationSize)
	}

	agents := make([]*agent.Agent, len(genomes))
	for i, g := range genomes {
		if len(g) != cfg.GenomeLength {
			return nil, fmt.Errorf("%w: seeded genome %d length mismatch: got=%d want=%d", ErrInvalidConfig, i, len(g), cfg.GenomeLength)
		}
		for j, d := range g {
			if !d.Valid() {
				return nil, fmt.Errorf("%w: seeded genome %d has invalid direction at %d", ErrInvalidConfig, i, j)
			}
		}
		agents[i] = agent.New(rng, cfg.Simulation, g.Clone(), agent.RandomColor(rng))
	}
	p := &Population{cfg: cfg, rng: rng}
	p.populate(agents)
	return p, nil
}

func (p *Population) populate(agents []*agent.Agent) {
	p.agents = agents
	p.generation++
	p.ticks = 0
	p.evaluated = false
	p.summary = FitnessSummary{}
}

// Tick steps every agent once.
func (p *Population) Tick() {
	forEachAgent(p.agents, p.cfg.Workers, (*agent.Agent).Step)
	p.ticks++
}

// IsGenerationComplete reports whether every agent has exhausted its genome.
func (p *Population) IsGenerationComplete() bool {
	for _, a := range p.agents {
		if a.Alive() {
			return false
		}
	}
	return true
}

// Evaluate computes raw and normalized fitness for the current generation.
func (p *Population) Evaluate() FitnessSummary {
	forEachAgent(p.agents, p.cfg.Workers, func(a *agent.Agent) {
		a.EvaluateFitness()
	})
	p.summary = summarizeFitness(p.agents)
	p.evaluated = true
	return p.summary
}

// MeanFitness is the mean raw distance of the last evaluation.
func (p *Population) MeanFitness() float64 {
	return p.summary.Mean
}

// BuildMatingPool returns the fitness-proportionate pool for the current,
// evaluated generation.
func (p *Population) BuildMatingPool() MatingPool {
	if !p.evaluated {
		p.Evaluate()
	}
	return BuildMatingPool(p.agents)
}

// Reproduce draws P parent pairs, crosses and mutates them, and returns the
// children together with the selection mode that was used. The current
// generation is left untouched.
func (p *Population) Reproduce(pool MatingPool) ([]*agent.Agent, string, error) {
	picker := newParentPicker(pool, p.agents)
	children := make([]*agent.Agent, 0, p.cfg.PopulationSize)
	for len(children) < p.cfg.PopulationSize {
		a, b := picker.pick(p.rng)
		child, err := a.Crossover(p.rng, b)
		if err != nil {
			return nil, "", err
		}
		child.Mutate(p.rng, p.cfg.MutationRate)
		children = append(children, child)
	}
	return children, picker.mode, nil
}

// RunEpoch evaluates the finished generation, breeds the next one and makes
// it current.
func (p *Population) RunEpoch() (EpochReport, error) {
	if !p.IsGenerationComplete() {
		return EpochReport{}, ErrGenerationInProgress
	}

	summary := p.Evaluate()
	pool := BuildMatingPool(p.agents)
	children, mode, err := p.Reproduce(pool)
	if err != nil {
		return EpochReport{}, fmt.Errorf("generation %d: %w", p.generation, err)
	}

	best := p.agents[summary.BestIndex]
	report := EpochReport{
		GenerationReport: model.GenerationReport{
			Generation:     p.generation,
			MeanFitness:    summary.Mean,
			BestFitness:    summary.Best,
			WorstFitness:   summary.Worst,
			MeanNormalized: summary.MeanNormalized,
			MatingPoolSize: len(pool),
			Selection:      mode,
			Ticks:          p.ticks,
		},
		Champion: Champion{
			Fitness:  best.Fitness(),
			Position: best.Position(),
			Color:    best.Color(),
			Genome:   best.Genome(),
		},
	}

	p.populate(children)
	return report, nil
}

// RunGeneration ticks until the current generation is complete and then runs
// the epoch. ctx is checked between ticks.
func (p *Population) RunGeneration(ctx context.Context) (EpochReport, error) {
	for !p.IsGenerationComplete() {
		if err := ctx.Err(); err != nil {
			return EpochReport{}, err
		}
		p.Tick()
	}
	return p.RunEpoch()
}

// Generation is the 1-based index of the generation currently alive.
func (p *Population) Generation() int {
	return p.generation
}

// Ticks is the number of ticks run in the current generation.
func (p *Population) Ticks() int {
	return p.ticks
}

func (p *Population) Size() int {
	return len(p.agents)
}

// Agents returns a copy of the current agent list. The agents themselves are
// shared and must only be read.
func (p *Population) Agents() []*agent.Agent {
	return append([]*agent.Agent(nil), p.agents...)
}

func (p *Population) Config() Config {
	return p.cfg
}

func (p *Population) Target() model.Vec2 {
	return p.cfg.Simulation.Target
}
