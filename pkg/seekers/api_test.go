package seekers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"seekers/internal/agent"
	"seekers/internal/evo"
	"seekers/internal/model"
	"seekers/internal/stats"
	"seekers/internal/telemetry"
)

func smallConfig() evo.Config {
	return evo.Config{
		PopulationSize: 12,
		GenomeLength:   20,
		MutationRate:   0.02,
		Workers:        2,
		Simulation: agent.SimulationConfig{
			Bounds: model.Size{Width: 200, Height: 200},
			Body:   model.Size{Width: 10, Height: 10},
			Target: model.Vec2{X: 40, Y: 40},
			Speed:  4,
			Spawn:  agent.SpawnPolicy{Mode: agent.SpawnFixed, Point: model.Vec2{X: 100, Y: 100}},
		},
	}
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.ArtifactsDir == "" {
		opts.ArtifactsDir = filepath.Join(t.TempDir(), "runs")
	}
	if opts.ExportsDir == "" {
		opts.ExportsDir = filepath.Join(t.TempDir(), "exports")
	}
	client, err := New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientRunHistoryChampion(t *testing.T) {
	var logs bytes.Buffer
	logger, err := telemetry.NewLogger(&logs, "json", "info")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	metrics := telemetry.NewMetrics()
	client := newTestClient(t, Options{StoreKind: "memory", Logger: logger, Metrics: metrics})
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Config: smallConfig(), Generations: 4, Seed: 9})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected generated run id")
	}
	if summary.Generations != 4 || len(summary.MeanByGeneration) != 4 || len(summary.BestByGeneration) != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Ticks != 4*20 {
		t.Fatalf("expected %d ticks, got %d", 4*20, summary.Ticks)
	}
	if summary.FinalBestFitness > summary.FinalMeanFitness {
		t.Fatalf("best %v should not exceed mean %v", summary.FinalBestFitness, summary.FinalMeanFitness)
	}
	if summary.Champion == nil || summary.Champion.Fitness != summary.FinalBestFitness {
		t.Fatalf("unexpected champion: %+v", summary.Champion)
	}
	if len(summary.Champion.Genome) != 20 {
		t.Fatalf("expected champion genome of 20 genes, got %q", summary.Champion.Genome)
	}
	if strings.Trim(summary.Champion.Genome, "URDL") != "" {
		t.Fatalf("champion genome has unknown letters: %q", summary.Champion.Genome)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "fitness.png")); err != nil {
		t.Fatalf("expected fitness plot: %v", err)
	}

	history, err := client.History(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 reports, got %d", len(history))
	}
	for i, report := range history {
		if report.Generation != i+1 {
			t.Fatalf("report %d has generation %d", i, report.Generation)
		}
		if report.MeanFitness != summary.MeanByGeneration[i] {
			t.Fatalf("report %d mean mismatch", i)
		}
	}

	champion, err := client.Champion(ctx, "")
	if err != nil {
		t.Fatalf("champion: %v", err)
	}
	if champion != *summary.Champion {
		t.Fatalf("unexpected latest champion: %+v", champion)
	}

	if got := strings.Count(logs.String(), `"msg":"generation complete"`); got != 4 {
		t.Fatalf("expected 4 generation log records, got %d", got)
	}
	if !strings.Contains(logs.String(), summary.RunID) {
		t.Fatal("expected run id in log records")
	}
}

func TestClientRunIsReproducibleForSeed(t *testing.T) {
	client := newTestClient(t, Options{StoreKind: "memory"})
	ctx := context.Background()

	first, err := client.Run(ctx, RunRequest{RunID: "a", Config: smallConfig(), Generations: 3, Seed: 5})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.Run(ctx, RunRequest{RunID: "b", Config: smallConfig(), Generations: 3, Seed: 5})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range first.MeanByGeneration {
		if first.MeanByGeneration[i] != second.MeanByGeneration[i] {
			t.Fatalf("generation %d differs: %v vs %v", i+1, first.MeanByGeneration[i], second.MeanByGeneration[i])
		}
	}
	if first.Champion.Genome != second.Champion.Genome {
		t.Fatal("expected identical champions for identical seeds")
	}
}

func TestClientRunsAndExport(t *testing.T) {
	client := newTestClient(t, Options{StoreKind: "memory"})
	ctx := context.Background()

	if _, err := client.Runs(ctx, 5); err != nil {
		t.Fatalf("runs on empty store: %v", err)
	}
	if _, err := client.History(ctx, ""); err == nil {
		t.Fatal("expected error when no runs exist")
	}

	for _, id := range []string{"first", "second"} {
		if _, err := client.Run(ctx, RunRequest{RunID: id, Config: smallConfig(), Generations: 1, Seed: 1}); err != nil {
			t.Fatalf("run %s: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := client.Runs(ctx, 5)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "second" || runs[1].RunID != "first" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Population != 12 || runs[0].GenomeLength != 20 || runs[0].Generations != 1 {
		t.Fatalf("unexpected run item: %+v", runs[0])
	}

	exported, err := client.Export(ctx, "", "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != "second" {
		t.Fatalf("expected latest run exported, got %s", exported.RunID)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "generations.json")); err != nil {
		t.Fatalf("expected exported generations: %v", err)
	}

	plotPath := filepath.Join(t.TempDir(), "first.svg")
	out, err := client.Plot(ctx, "first", plotPath)
	if err != nil {
		t.Fatalf("plot: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected plot file: %v", err)
	}
}

func TestClientFallsBackToArtifacts(t *testing.T) {
	artifactsDir := filepath.Join(t.TempDir(), "runs")
	ctx := context.Background()

	writer := newTestClient(t, Options{StoreKind: "memory", ArtifactsDir: artifactsDir})
	summary, err := writer.Run(ctx, RunRequest{RunID: "persisted", Config: smallConfig(), Generations: 2, Seed: 3})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// A second process with a fresh memory store only sees the artifacts.
	reader := newTestClient(t, Options{StoreKind: "memory", ArtifactsDir: artifactsDir})
	runs, err := reader.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "persisted" {
		t.Fatalf("unexpected runs from index: %+v", runs)
	}
	history, err := reader.History(ctx, "persisted")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[1].MeanFitness != summary.FinalMeanFitness {
		t.Fatalf("unexpected history from artifacts: %+v", history)
	}
	champion, err := reader.Champion(ctx, "persisted")
	if err != nil {
		t.Fatalf("champion: %v", err)
	}
	if champion.Genome != summary.Champion.Genome {
		t.Fatalf("unexpected champion from artifacts: %+v", champion)
	}
	if _, err := reader.History(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestClientPlotsFromFitnessSeries(t *testing.T) {
	artifactsDir := filepath.Join(t.TempDir(), "runs")
	ctx := context.Background()

	writer := newTestClient(t, Options{StoreKind: "memory", ArtifactsDir: artifactsDir})
	if _, err := writer.Run(ctx, RunRequest{RunID: "csv-only", Config: smallConfig(), Generations: 2, Seed: 5}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := os.Remove(filepath.Join(artifactsDir, "csv-only", "generations.json")); err != nil {
		t.Fatalf("remove generations: %v", err)
	}

	reader := newTestClient(t, Options{StoreKind: "memory", ArtifactsDir: artifactsDir})
	if _, err := reader.History(ctx, "csv-only"); !errors.Is(err, ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound, got %v", err)
	}
	out, err := reader.Plot(ctx, "csv-only", filepath.Join(t.TempDir(), "series.svg"))
	if err != nil {
		t.Fatalf("plot: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected plot file: %v", err)
	}

	if _, err := reader.Plot(ctx, "missing", filepath.Join(t.TempDir(), "none.svg")); !errors.Is(err, ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound for unknown run, got %v", err)
	}
}

func TestClientSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	client := newTestClient(t, Options{StoreKind: "sqlite", DBPath: filepath.Join(dir, "seekers.db"), ArtifactsDir: filepath.Join(dir, "runs")})
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Config: smallConfig(), Generations: 2, Seed: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	runs, err := client.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestSessionDrivenByCaller(t *testing.T) {
	client := newTestClient(t, Options{StoreKind: "memory"})
	ctx := context.Background()

	session, err := client.NewSession(RunRequest{RunID: "watched", Config: smallConfig(), Seed: 2})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	pop := session.Population()
	for !pop.IsGenerationComplete() {
		pop.Tick()
	}
	report, err := pop.RunEpoch()
	if err != nil {
		t.Fatalf("run epoch: %v", err)
	}
	session.Observe(report, time.Millisecond)

	summary, err := session.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if summary.RunID != "watched" || summary.Generations != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, ok, err := stats.ReadRunConfig(client.artifactsDir, "watched"); err != nil || !ok {
		t.Fatalf("expected run config: ok=%v err=%v", ok, err)
	}
}

func TestClientRunRejectsBadRequests(t *testing.T) {
	client := newTestClient(t, Options{StoreKind: "memory"})
	ctx := context.Background()

	if _, err := client.Run(ctx, RunRequest{Config: smallConfig(), Generations: 0}); err == nil {
		t.Fatal("expected error for zero generations")
	}
	bad := smallConfig()
	bad.MutationRate = 2
	if _, err := client.Run(ctx, RunRequest{Config: bad, Generations: 1}); !errors.Is(err, evo.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := client.Run(cancelled, RunRequest{Config: smallConfig(), Generations: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	if _, err := New(Options{StoreKind: "redis"}); err == nil {
		t.Fatal("expected error for unknown store kind")
	}
}
