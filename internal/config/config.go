// Package config loads run settings from YAML, layering a user file over the
// embedded defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"seekers/internal/agent"
	"seekers/internal/evo"
	"seekers/internal/storage"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Evolution  EvolutionConfig        `yaml:"evolution"`
	Simulation agent.SimulationConfig `yaml:"simulation"`
	Run        RunConfig              `yaml:"run"`
	Log        LogConfig              `yaml:"log"`
	View       ViewConfig             `yaml:"view"`
}

type EvolutionConfig struct {
	PopulationSize int     `yaml:"population_size"`
	GenomeLength   int     `yaml:"genome_length"`
	MutationRate   float64 `yaml:"mutation_rate"`
	Workers        int     `yaml:"workers"`
}

type RunConfig struct {
	Generations  int    `yaml:"generations"`
	Seed         int64  `yaml:"seed"`
	Store        string `yaml:"store"`
	DBPath       string `yaml:"db_path"`
	ArtifactsDir string `yaml:"artifacts_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type ViewConfig struct {
	FPS           int  `yaml:"fps"`
	TicksPerFrame int  `yaml:"ticks_per_frame"`
	Sound         bool `yaml:"sound"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	return Load("")
}

// Load parses the embedded defaults and, when path is non-empty, overlays the
// file at path. Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.ToEvoConfig().Validate(); err != nil {
		return err
	}
	if c.Run.Generations < 0 {
		return fmt.Errorf("run.generations must be >= 0, got %d", c.Run.Generations)
	}
	switch c.Run.Store {
	case "", storage.KindMemory, storage.KindSQLite:
	default:
		return fmt.Errorf("run.store: unsupported store kind %q", c.Run.Store)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.View.FPS < 0 {
		return fmt.Errorf("view.fps must be >= 0, got %d", c.View.FPS)
	}
	if c.View.TicksPerFrame < 0 {
		return fmt.Errorf("view.ticks_per_frame must be >= 0, got %d", c.View.TicksPerFrame)
	}
	return nil
}

func (c *Config) ToEvoConfig() evo.Config {
	return evo.Config{
		PopulationSize: c.Evolution.PopulationSize,
		GenomeLength:   c.Evolution.GenomeLength,
		MutationRate:   c.Evolution.MutationRate,
		Workers:        c.Evolution.Workers,
		Simulation:     c.Simulation,
	}
}
