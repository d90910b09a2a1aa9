package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"

	"seekers/internal/evo"
	"seekers/internal/telemetry"
	"seekers/internal/view"
	"seekers/pkg/seekers"
)

// Seams for tests.
var (
	newScreen  = tcell.NewScreen
	isTerminal = func() bool {
		fd := os.Stdout.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "watch":
		return runWatch(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "champion":
		return runChampion(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	settings := addSettingsFlags(fs)
	runID := fs.String("run-id", "", "explicit run id (default: random uuid)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := settings.load(setFlagNames(fs))
	if err != nil {
		return err
	}
	if cfg.Run.Generations <= 0 {
		return errors.New("gens must be > 0")
	}
	logger, err := newLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	if *metricsAddr != "" {
		shutdown, addr, err := serveMetrics(*metricsAddr, metrics)
		if err != nil {
			return err
		}
		defer shutdown()
		logger.Info("serving metrics", "addr", addr)
	}

	client, err := newClient(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, seekers.RunRequest{
		RunID:       *runID,
		Config:      cfg.ToEvoConfig(),
		Generations: cfg.Run.Generations,
		Seed:        cfg.Run.Seed,
	})
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	settings := addSettingsFlags(fs)
	runID := fs.String("run-id", "", "explicit run id (default: random uuid)")
	fps := fs.Int("fps", 0, "frames per second (default from config)")
	ticksPerFrame := fs.Int("ticks-per-frame", 0, "simulation ticks per frame (default from config)")
	sound := fs.Bool("sound", false, "chime on every completed generation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlagNames(fs)

	cfg, err := settings.load(set)
	if err != nil {
		return err
	}
	if set["fps"] {
		cfg.View.FPS = *fps
	}
	if set["ticks-per-frame"] {
		cfg.View.TicksPerFrame = *ticksPerFrame
	}
	if set["sound"] {
		cfg.View.Sound = *sound
	}
	// Without -gens the viewer runs until the user quits.
	maxGenerations := 0
	if set["gens"] {
		maxGenerations = cfg.Run.Generations
	}

	if !isTerminal() {
		return errors.New("watch requires an interactive terminal; use run instead")
	}

	// The screen owns the terminal, so records are dropped while it is up.
	client, err := newClient(cfg, telemetry.Discard(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	session, err := client.NewSession(seekers.RunRequest{
		RunID:       *runID,
		Config:      cfg.ToEvoConfig(),
		Generations: maxGenerations,
		Seed:        cfg.Run.Seed,
	})
	if err != nil {
		return err
	}

	var chime *view.Chime
	if cfg.View.Sound {
		chime = view.NewChime()
		if err := chime.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "audio unavailable: %v\n", err)
			chime = nil
		}
		defer chime.Close()
	}

	screen, err := newScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}

	onEpoch := func(report evo.EpochReport, elapsed time.Duration) error {
		session.Observe(report, elapsed)
		return nil
	}
	viewer := view.New(screen, session.Population(), view.Options{
		FPS:            cfg.View.FPS,
		TicksPerFrame:  cfg.View.TicksPerFrame,
		MaxGenerations: maxGenerations,
		OnEpoch:        onEpoch,
		Chime:          chime,
	})
	runErr := viewer.Run(ctx)
	screen.Fini()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	summary, err := session.Finish(context.Background())
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	settings := &settingsFlags{}
	addStoreFlags(fs, settings)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := clientFromStoreFlags(fs, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID            string  `json:"run_id"`
			CreatedAtUTC     string  `json:"created_at_utc"`
			Seed             int64   `json:"seed"`
			PopulationSize   int     `json:"population_size"`
			GenomeLength     int     `json:"genome_length"`
			Generations      int     `json:"generations"`
			FinalMeanFitness float64 `json:"final_mean_fitness"`
			FinalBestFitness float64 `json:"final_best_fitness"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem{
				RunID:            r.RunID,
				CreatedAtUTC:     r.CreatedAtUTC,
				Seed:             r.Seed,
				PopulationSize:   r.Population,
				GenomeLength:     r.GenomeLength,
				Generations:      r.Generations,
				FinalMeanFitness: r.FinalMeanFitness,
				FinalBestFitness: r.FinalBestFitness,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s seed=%d pop=%s genome=%d gens=%d final_mean_fitness=%.6f final_best_fitness=%.6f\n",
			r.RunID,
			humanizeTimestamp(r.CreatedAtUTC),
			r.Seed,
			humanize.Comma(int64(r.Population)),
			r.GenomeLength,
			r.Generations,
			r.FinalMeanFitness,
			r.FinalBestFitness,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	settings := &settingsFlags{}
	addStoreFlags(fs, settings)
	runID := fs.String("run-id", "", "run id (default: latest run)")
	limit := fs.Int("limit", 0, "max generations to show (0 = all)")
	jsonOut := fs.Bool("json", false, "emit generation reports as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return errors.New("limit must be >= 0")
	}

	client, err := clientFromStoreFlags(fs, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	reports, err := client.History(ctx, *runID)
	if err != nil {
		return err
	}
	if *limit > 0 && len(reports) > *limit {
		reports = reports[:*limit]
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, r := range reports {
		fmt.Printf("generation=%d mean_fitness=%.6f best_fitness=%.6f worst_fitness=%.6f mean_normalized=%.4f pool_size=%s selection=%s\n",
			r.Generation,
			r.MeanFitness,
			r.BestFitness,
			r.WorstFitness,
			r.MeanNormalized,
			humanize.Comma(int64(r.MatingPoolSize)),
			r.Selection,
		)
	}
	return nil
}

func runChampion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("champion", flag.ContinueOnError)
	settings := &settingsFlags{}
	addStoreFlags(fs, settings)
	runID := fs.String("run-id", "", "run id (default: latest run)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := clientFromStoreFlags(fs, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	champion, err := client.Champion(ctx, *runID)
	if err != nil {
		return err
	}
	fmt.Printf("run_id=%s generation=%d fitness=%.6f position=(%.2f,%.2f) color=#%02x%02x%02x genome=%s\n",
		champion.RunID,
		champion.Generation,
		champion.Fitness,
		champion.Position.X,
		champion.Position.Y,
		champion.Color.R,
		champion.Color.G,
		champion.Color.B,
		champion.Genome,
	)
	return nil
}

func runPlot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	settings := &settingsFlags{}
	addStoreFlags(fs, settings)
	runID := fs.String("run-id", "", "run id (default: latest run)")
	out := fs.String("out", "", "output image path; extension picks the format (default: <artifacts>/<run>/fitness.png)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := clientFromStoreFlags(fs, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	path, err := client.Plot(ctx, *runID, *out)
	if err != nil {
		return err
	}
	fmt.Printf("plot=%s\n", path)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	settings := &settingsFlags{}
	addStoreFlags(fs, settings)
	runID := fs.String("run-id", "", "run id (default: latest run)")
	out := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := clientFromStoreFlags(fs, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, *runID, *out)
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func clientFromStoreFlags(fs *flag.FlagSet, settings *settingsFlags) (*seekers.Client, error) {
	cfg, err := settings.load(setFlagNames(fs))
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(os.Stderr, cfg)
	if err != nil {
		return nil, err
	}
	return newClient(cfg, logger, nil)
}

func serveMetrics(addr string, metrics *telemetry.Metrics) (func(), string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return shutdown, ln.Addr().String(), nil
}

func printSummary(summary seekers.RunSummary) {
	fmt.Printf("run_id=%s generations=%d ticks=%s final_mean_fitness=%.6f final_best_fitness=%.6f\n",
		summary.RunID,
		summary.Generations,
		humanize.Comma(summary.Ticks),
		summary.FinalMeanFitness,
		summary.FinalBestFitness,
	)
	for i := range summary.MeanByGeneration {
		fmt.Printf("generation=%d mean_fitness=%.6f best_fitness=%.6f\n", i+1, summary.MeanByGeneration[i], summary.BestByGeneration[i])
	}
	if summary.Champion != nil {
		fmt.Printf("champion fitness=%.6f genome=%s\n", summary.Champion.Fitness, summary.Champion.Genome)
	}
	if summary.ArtifactsDir != "" {
		fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	}
}

func humanizeTimestamp(value string) string {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.Time(t)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: seekersctl <run|watch|runs|history|champion|plot|export> [flags]", msg)
}
