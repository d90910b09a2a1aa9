package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"

	"seekers/internal/agent"
	"seekers/internal/config"
	"seekers/internal/telemetry"
	"seekers/pkg/seekers"
)

// settingsFlags are the flags shared by commands that build a population.
// Each one overrides the loaded config only when it was set explicitly.
type settingsFlags struct {
	configPath   *string
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	logLevel     *string
	logFormat    *string

	population   *int
	genomeLength *int
	mutationRate *float64
	workers      *int
	generations  *int
	seed         *int64
	spawn        *string
	spawnX       *float64
	spawnY       *float64
	targetX      *float64
	targetY      *float64
	speed        *float64
}

func addStoreFlags(fs *flag.FlagSet, s *settingsFlags) {
	s.configPath = fs.String("config", "", "path to a YAML config overlaying the defaults")
	s.storeKind = fs.String("store", "", "store backend: memory|sqlite (default from config)")
	s.dbPath = fs.String("db-path", "", "sqlite database path (default from config)")
	s.artifactsDir = fs.String("artifacts-dir", "", "run artifacts directory (default from config)")
	s.logLevel = fs.String("log-level", "", "log level: debug|info|warn|error")
	s.logFormat = fs.String("log-format", "", "log format: text|json")
}

func addSettingsFlags(fs *flag.FlagSet) *settingsFlags {
	s := &settingsFlags{}
	addStoreFlags(fs, s)
	s.population = fs.Int("pop", 0, "population size")
	s.genomeLength = fs.Int("genome", 0, "genome length (ticks per generation)")
	s.mutationRate = fs.Float64("rate", 0, "per-gene mutation probability in [0,1]")
	s.workers = fs.Int("workers", 0, "agents stepped concurrently per tick (<=1 is serial)")
	s.generations = fs.Int("gens", 0, "generations to run")
	s.seed = fs.Int64("seed", 0, "random seed")
	s.spawn = fs.String("spawn", "", "spawn policy: fixed|random")
	s.spawnX = fs.Float64("spawn-x", 0, "fixed spawn x")
	s.spawnY = fs.Float64("spawn-y", 0, "fixed spawn y")
	s.targetX = fs.Float64("target-x", 0, "target x")
	s.targetY = fs.Float64("target-y", 0, "target y")
	s.speed = fs.Float64("speed", 0, "distance moved per tick")
	return s
}

func setFlagNames(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// load reads the config file (or the defaults), applies explicitly set flags
// and validates the result.
func (s *settingsFlags) load(set map[string]bool) (*config.Config, error) {
	cfg, err := config.Load(*s.configPath)
	if err != nil {
		return nil, err
	}

	if set["store"] {
		cfg.Run.Store = *s.storeKind
	}
	if set["db-path"] {
		cfg.Run.DBPath = *s.dbPath
	}
	if set["artifacts-dir"] {
		cfg.Run.ArtifactsDir = *s.artifactsDir
	}
	if set["log-level"] {
		cfg.Log.Level = *s.logLevel
	}
	if set["log-format"] {
		cfg.Log.Format = *s.logFormat
	}

	if s.population != nil {
		if set["pop"] {
			cfg.Evolution.PopulationSize = *s.population
		}
		if set["genome"] {
			cfg.Evolution.GenomeLength = *s.genomeLength
		}
		if set["rate"] {
			cfg.Evolution.MutationRate = *s.mutationRate
		}
		if set["workers"] {
			cfg.Evolution.Workers = *s.workers
		}
		if set["gens"] {
			cfg.Run.Generations = *s.generations
		}
		if set["seed"] {
			cfg.Run.Seed = *s.seed
		}
		if set["spawn"] {
			cfg.Simulation.Spawn.Mode = agent.SpawnMode(*s.spawn)
		}
		if set["spawn-x"] {
			cfg.Simulation.Spawn.Point.X = *s.spawnX
		}
		if set["spawn-y"] {
			cfg.Simulation.Spawn.Point.Y = *s.spawnY
		}
		if set["target-x"] {
			cfg.Simulation.Target.X = *s.targetX
		}
		if set["target-y"] {
			cfg.Simulation.Target.Y = *s.targetY
		}
		if set["speed"] {
			cfg.Simulation.Speed = *s.speed
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	logger, err := telemetry.NewLogger(w, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return logger, nil
}

func newClient(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*seekers.Client, error) {
	return seekers.New(seekers.Options{
		StoreKind:    cfg.Run.Store,
		DBPath:       cfg.Run.DBPath,
		ArtifactsDir: cfg.Run.ArtifactsDir,
		Logger:       logger,
		Metrics:      metrics,
	})
}
