package evo

import (
	"errors"
	"fmt"

	"seekers/internal/agent"
)

var (
	ErrInvalidConfig        = errors.New("invalid population config")
	ErrGenerationInProgress = errors.New("generation still has live agents")
)

// Config is consumed once, when a population is constructed.
type Config struct {
	PopulationSize int                    `json:"population_size"`
	GenomeLength   int                    `json:"genome_length"`
	MutationRate   float64                `json:"mutation_rate"`
	Workers        int                    `json:"workers"`
	Simulation     agent.SimulationConfig `json:"simulation"`
}

func (c Config) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0, got %d", ErrInvalidConfig, c.PopulationSize)
	}
	if c.GenomeLength <= 0 {
		return fmt.Errorf("%w: genome length must be > 0, got %d", ErrInvalidConfig, c.GenomeLength)
	}
	if !(c.MutationRate >= 0 && c.MutationRate <= 1) {
		return fmt.Errorf("%w: mutation rate must be in [0, 1], got %g", ErrInvalidConfig, c.MutationRate)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
