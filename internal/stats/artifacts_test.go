package stats

import (
	"os"
	"path/filepath"
	"testing"

	"seekers/internal/agent"
	"seekers/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			CreatedAtUTC:   "2026-04-01T12:00:00Z",
			Seed:           11,
			Generations:    3,
			PopulationSize: 20,
			GenomeLength:   40,
			MutationRate:   0.01,
			Workers:        2,
			Simulation: agent.SimulationConfig{
				Bounds: model.Size{Width: 500, Height: 500},
				Body:   model.Size{Width: 10, Height: 10},
				Target: model.Vec2{X: 100, Y: 100},
				Speed:  4,
				Spawn:  agent.SpawnPolicy{Mode: agent.SpawnFixed, Point: model.Vec2{X: 250, Y: 250}},
			},
		},
		Generations: []model.GenerationReport{
			{Generation: 1, MeanFitness: 210.5, BestFitness: 90, WorstFitness: 320, MeanNormalized: 0.34, MatingPoolSize: 640, Selection: "mating_pool", Ticks: 40},
			{Generation: 2, MeanFitness: 180.25, BestFitness: 61.125, WorstFitness: 300, MeanNormalized: 0.4, MatingPoolSize: 790, Selection: "mating_pool", Ticks: 40},
			{Generation: 3, MeanFitness: 150, BestFitness: 30, WorstFitness: 270, MeanNormalized: 0.44, MatingPoolSize: 870, Selection: "mating_pool", Ticks: 40},
		},
		Champion: &model.ChampionRecord{RunID: runID, Generation: 3, Fitness: 30, Position: model.Vec2{X: 118, Y: 124}, Genome: "UULL"},
	}
}

func TestWriteAndReadRunArtifacts(t *testing.T) {
	base := t.TempDir()
	artifacts := sampleArtifacts("run-1")

	runDir, err := WriteRunArtifacts(base, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if runDir != filepath.Join(base, "run-1") {
		t.Fatalf("unexpected run dir: %s", runDir)
	}
	for _, name := range []string{configFile, generationsFile, championFile, fitnessSeriesFile, fitnessPlotFile} {
		info, err := os.Stat(filepath.Join(runDir, name))
		if err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", name)
		}
	}

	cfg, ok, err := ReadRunConfig(base, "run-1")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%v err=%v", ok, err)
	}
	if cfg != artifacts.Config {
		t.Fatalf("config mismatch: %+v", cfg)
	}

	generations, ok, err := ReadGenerations(base, "run-1")
	if err != nil || !ok {
		t.Fatalf("read generations: ok=%v err=%v", ok, err)
	}
	if len(generations) != 3 || generations[1] != artifacts.Generations[1] {
		t.Fatalf("generations mismatch: %+v", generations)
	}

	champion, ok, err := ReadChampion(base, "run-1")
	if err != nil || !ok {
		t.Fatalf("read champion: ok=%v err=%v", ok, err)
	}
	if champion != *artifacts.Champion {
		t.Fatalf("champion mismatch: %+v", champion)
	}

	series, ok, err := ReadFitnessSeries(base, "run-1")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%v err=%v", ok, err)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 series rows, got %d", len(series))
	}
	if series[1].Generation != 2 || series[1].MeanFitness != 180.25 || series[1].BestFitness != 61.125 {
		t.Fatalf("unexpected series row: %+v", series[1])
	}
}

func TestWriteRunArtifactsWithoutGenerations(t *testing.T) {
	base := t.TempDir()
	artifacts := sampleArtifacts("empty")
	artifacts.Generations = nil
	artifacts.Champion = nil

	runDir, err := WriteRunArtifacts(base, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, fitnessPlotFile)); !os.IsNotExist(err) {
		t.Fatalf("expected no plot for empty run, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, championFile)); !os.IsNotExist(err) {
		t.Fatalf("expected no champion file, got %v", err)
	}
	series, ok, err := ReadFitnessSeries(base, "empty")
	if err != nil || !ok || len(series) != 0 {
		t.Fatalf("unexpected series: ok=%v len=%d err=%v", ok, len(series), err)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	base := t.TempDir()
	if _, ok, err := ReadRunConfig(base, "nope"); ok || err != nil {
		t.Fatalf("missing config: ok=%v err=%v", ok, err)
	}
	if _, ok, err := ReadGenerations(base, "nope"); ok || err != nil {
		t.Fatalf("missing generations: ok=%v err=%v", ok, err)
	}
	if _, ok, err := ReadChampion(base, "nope"); ok || err != nil {
		t.Fatalf("missing champion: ok=%v err=%v", ok, err)
	}
	if _, ok, err := ReadFitnessSeries(base, "nope"); ok || err != nil {
		t.Fatalf("missing series: ok=%v err=%v", ok, err)
	}
}

func TestReadFitnessSeriesRejectsShortRows(t *testing.T) {
	base := t.TempDir()
	runDir := filepath.Join(base, "bad")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "generation,mean_fitness,best_fitness\n1,2\n"
	if err := os.WriteFile(filepath.Join(runDir, fitnessSeriesFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := ReadFitnessSeries(base, "bad"); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestRunIndexOrderingAndReplace(t *testing.T) {
	base := t.TempDir()

	entries, err := ListRunIndex(base)
	if err != nil {
		t.Fatalf("list empty index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %d", len(entries))
	}

	for _, entry := range []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", FinalBestFitness: 50},
		{RunID: "b", CreatedAtUTC: "2026-01-03T00:00:00Z", FinalBestFitness: 40},
		{RunID: "c", CreatedAtUTC: "2026-01-03T00:00:00Z", FinalBestFitness: 30},
	} {
		if err := AppendRunIndex(base, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	entries, err = ListRunIndex(base)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 3 || entries[0].RunID != "c" || entries[1].RunID != "b" || entries[2].RunID != "a" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	if err := AppendRunIndex(base, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", FinalBestFitness: 5}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	entries, err = ListRunIndex(base)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected replace, got %d entries", len(entries))
	}
	if entries[2].RunID != "a" || entries[2].FinalBestFitness != 5 {
		t.Fatalf("entry not replaced: %+v", entries[2])
	}

	if err := AppendRunIndex(base, RunIndexEntry{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestExportRunArtifacts(t *testing.T) {
	base := t.TempDir()
	out := t.TempDir()
	if _, err := WriteRunArtifacts(base, sampleArtifacts("run-x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst, err := ExportRunArtifacts(base, "run-x", out)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, name := range []string{configFile, generationsFile, championFile, fitnessSeriesFile, fitnessPlotFile} {
		if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
			t.Fatalf("expected exported %s: %v", name, err)
		}
	}

	if _, err := ExportRunArtifacts(base, "missing", out); err == nil {
		t.Fatal("expected error for missing run")
	}
}
