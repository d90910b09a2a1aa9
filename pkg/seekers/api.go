package seekers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"seekers/internal/evo"
	"seekers/internal/model"
	"seekers/internal/stats"
	"seekers/internal/storage"
	"seekers/internal/telemetry"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "seekers.db"
	defaultRunsLimit    = 20

	// Fixed width keeps lexical order equal to time order.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var ErrHistoryNotFound = errors.New("generation history not found")

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	// Logger receives one record per completed generation; nil discards.
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *telemetry.Metrics
}

type Client struct {
	store       storage.Store
	initialized bool

	artifactsDir string
	exportsDir   string
	logger       *slog.Logger
	metrics      *telemetry.Metrics
}

type RunRequest struct {
	// RunID defaults to a random UUID.
	RunID       string
	Config      evo.Config
	Generations int
	Seed        int64
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Generations      int
	Ticks            int64
	MeanByGeneration []float64
	BestByGeneration []float64
	FinalMeanFitness float64
	FinalBestFitness float64
	Champion         *model.ChampionRecord
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Seed             int64
	Population       int
	GenomeLength     int
	Generations      int
	FinalMeanFitness float64
	FinalBestFitness float64
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Run evolves a fresh population for req.Generations generations without
// rendering and persists the history.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Generations <= 0 {
		return RunSummary{}, fmt.Errorf("generations must be > 0, got %d", req.Generations)
	}

	session, err := c.NewSession(req)
	if err != nil {
		return RunSummary{}, err
	}

	pop := session.Population()
	for i := 0; i < req.Generations; i++ {
		start := time.Now()
		report, err := pop.RunGeneration(ctx)
		if err != nil {
			return RunSummary{}, err
		}
		session.Observe(report, time.Since(start))
	}

	return session.Finish(ctx)
}

// Runs lists recorded runs newest first. Runs kept by the store take
// precedence; the artifacts run index covers stores that do not outlive the
// process.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunItem, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	records, err := c.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		out := make([]RunItem, 0, len(records))
		for _, r := range records {
			out = append(out, RunItem{
				RunID:            r.ID,
				CreatedAtUTC:     r.CreatedAtUTC,
				Seed:             r.Seed,
				Population:       r.PopulationSize,
				GenomeLength:     r.GenomeLength,
				Generations:      r.Generations,
				FinalMeanFitness: r.FinalMean,
				FinalBestFitness: r.FinalBest,
			})
		}
		return out, nil
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			GenomeLength:     e.GenomeLength,
			Generations:      e.Generations,
			FinalMeanFitness: e.FinalMeanFitness,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

// History returns the per-generation reports of a run. An empty runID selects
// the latest run.
func (c *Client) History(ctx context.Context, runID string) ([]model.GenerationReport, error) {
	runID, err := c.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	reports, ok, err := c.store.GetGenerationReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return reports, nil
	}
	reports, ok, err = stats.ReadGenerations(c.artifactsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w for run id: %s", ErrHistoryNotFound, runID)
	}
	return reports, nil
}

// Champion returns the recorded closest agent of a run. An empty runID
// selects the latest run.
func (c *Client) Champion(ctx context.Context, runID string) (model.ChampionRecord, error) {
	runID, err := c.resolveRunID(ctx, runID)
	if err != nil {
		return model.ChampionRecord{}, err
	}

	champion, ok, err := c.store.GetChampion(ctx, runID)
	if err != nil {
		return model.ChampionRecord{}, err
	}
	if ok {
		return champion, nil
	}
	champion, ok, err = stats.ReadChampion(c.artifactsDir, runID)
	if err != nil {
		return model.ChampionRecord{}, err
	}
	if !ok {
		return model.ChampionRecord{}, fmt.Errorf("champion not found for run id: %s", runID)
	}
	return champion, nil
}

// Plot renders the fitness curve of a run to outPath.
func (c *Client) Plot(ctx context.Context, runID, outPath string) (string, error) {
	runID, err := c.resolveRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	reports, err := c.History(ctx, runID)
	if errors.Is(err, ErrHistoryNotFound) {
		series, ok, serr := stats.ReadFitnessSeries(c.artifactsDir, runID)
		if serr != nil {
			return "", serr
		}
		if ok {
			reports, err = series, nil
		}
	}
	if err != nil {
		return "", err
	}
	if outPath == "" {
		outPath = filepath.Join(c.artifactsDir, runID, "fitness.png")
	}
	title := fmt.Sprintf("run %s", runID)
	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return "", err
	}
	if ok {
		title = fmt.Sprintf("run %s (population %d, genome %d)", runID, cfg.PopulationSize, cfg.GenomeLength)
	}
	if err := stats.WriteFitnessPlot(outPath, title, reports); err != nil {
		return "", err
	}
	return filepath.Clean(outPath), nil
}

func (c *Client) Export(ctx context.Context, runID, outDir string) (ExportSummary, error) {
	runID, err := c.resolveRunID(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if outDir == "" {
		outDir = c.exportsDir
	}
	dir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, outDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string) (string, error) {
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	runs, err := c.Runs(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].RunID, nil
}

// Session tracks one run whose population is driven by the caller, either
// Run's headless loop or the terminal viewer.
type Session struct {
	client    *Client
	req       RunRequest
	createdAt time.Time
	pop       *evo.Population

	reports  []model.GenerationReport
	champion *evo.Champion
	ticks    int64
}

func (c *Client) NewSession(req RunRequest) (*Session, error) {
	if req.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0, got %d", req.Generations)
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	pop, err := evo.NewPopulation(req.Config, rand.New(rand.NewSource(req.Seed)))
	if err != nil {
		return nil, err
	}
	return &Session{
		client:    c,
		req:       req,
		createdAt: time.Now().UTC(),
		pop:       pop,
	}, nil
}

func (s *Session) RunID() string {
	return s.req.RunID
}

func (s *Session) Population() *evo.Population {
	return s.pop
}

// Observe records a completed generation.
func (s *Session) Observe(report evo.EpochReport, elapsed time.Duration) {
	s.reports = append(s.reports, report.GenerationReport)
	champion := report.Champion
	s.champion = &champion
	s.ticks += int64(report.Ticks)

	logger := s.client.logger.With("run_id", s.req.RunID)
	logger.Info("generation complete",
		"generation", report.Generation,
		"mean_fitness", report.MeanFitness,
		"best_fitness", report.BestFitness,
		"pool_size", report.MatingPoolSize,
		"selection", report.Selection,
		"elapsed", elapsed,
	)
	if report.Selection == evo.SelectionUniformFallback {
		logger.Warn("mating pool empty, parents drawn uniformly", "generation", report.Generation)
	}
	s.client.metrics.Observe(report.GenerationReport, elapsed)
}

// Finish persists the run record, generation reports, champion and
// artifacts.
func (s *Session) Finish(ctx context.Context) (RunSummary, error) {
	c := s.client
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := s.req.RunID
	createdAt := s.createdAt.Format(createdAtLayout)
	summary := RunSummary{
		RunID:            runID,
		Generations:      len(s.reports),
		Ticks:            s.ticks,
		MeanByGeneration: make([]float64, 0, len(s.reports)),
		BestByGeneration: make([]float64, 0, len(s.reports)),
	}
	for _, r := range s.reports {
		summary.MeanByGeneration = append(summary.MeanByGeneration, r.MeanFitness)
		summary.BestByGeneration = append(summary.BestByGeneration, r.BestFitness)
	}
	if n := len(s.reports); n > 0 {
		summary.FinalMeanFitness = s.reports[n-1].MeanFitness
		summary.FinalBestFitness = s.reports[n-1].BestFitness
	}

	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		CreatedAtUTC:    createdAt,
		Seed:            s.req.Seed,
		PopulationSize:  s.req.Config.PopulationSize,
		GenomeLength:    s.req.Config.GenomeLength,
		MutationRate:    s.req.Config.MutationRate,
		Generations:     summary.Generations,
		Ticks:           summary.Ticks,
		FinalMean:       summary.FinalMeanFitness,
		FinalBest:       summary.FinalBestFitness,
	}); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveGenerationReports(ctx, runID, s.reports); err != nil {
		return RunSummary{}, err
	}

	if s.champion != nil {
		record := model.ChampionRecord{
			VersionedRecord: storage.Versioned(),
			RunID:           runID,
			Generation:      s.reports[len(s.reports)-1].Generation,
			Fitness:         s.champion.Fitness,
			Position:        s.champion.Position,
			Color:           s.champion.Color,
			Genome:          s.champion.Genome.String(),
		}
		if err := c.store.SaveChampion(ctx, record); err != nil {
			return RunSummary{}, err
		}
		summary.Champion = &record
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          runID,
			CreatedAtUTC:   createdAt,
			Seed:           s.req.Seed,
			Generations:    summary.Generations,
			PopulationSize: s.req.Config.PopulationSize,
			GenomeLength:   s.req.Config.GenomeLength,
			MutationRate:   s.req.Config.MutationRate,
			Workers:        s.req.Config.Workers,
			Simulation:     s.req.Config.Simulation,
		},
		Generations: s.reports,
		Champion:    summary.Champion,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		CreatedAtUTC:     createdAt,
		Seed:             s.req.Seed,
		PopulationSize:   s.req.Config.PopulationSize,
		GenomeLength:     s.req.Config.GenomeLength,
		Generations:      summary.Generations,
		FinalMeanFitness: summary.FinalMeanFitness,
		FinalBestFitness: summary.FinalBestFitness,
	}); err != nil {
		return RunSummary{}, err
	}

	summary.ArtifactsDir = filepath.Clean(runDir)
	c.logger.Info("run recorded",
		"run_id", runID,
		"generations", summary.Generations,
		"final_mean_fitness", summary.FinalMeanFitness,
		"final_best_fitness", summary.FinalBestFitness,
		"artifacts", summary.ArtifactsDir,
	)
	return summary, nil
}
