package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"seekers/internal/agent"
	"seekers/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	generationsFile    = "generations.json"
	championFile       = "champion.json"
	fitnessSeriesFile  = "fitness_series.csv"
	fitnessPlotFile    = "fitness.png"
	fitnessSeriesWidth = 3
)

type RunConfig struct {
	RunID          string                 `json:"run_id"`
	CreatedAtUTC   string                 `json:"created_at_utc"`
	Seed           int64                  `json:"seed"`
	Generations    int                    `json:"generations"`
	PopulationSize int                    `json:"population_size"`
	GenomeLength   int                    `json:"genome_length"`
	MutationRate   float64                `json:"mutation_rate"`
	Workers        int                    `json:"workers"`
	Simulation     agent.SimulationConfig `json:"simulation"`
}

type RunArtifacts struct {
	Config      RunConfig                `json:"config"`
	Generations []model.GenerationReport `json:"generations"`
	Champion    *model.ChampionRecord    `json:"champion,omitempty"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	Seed             int64   `json:"seed"`
	PopulationSize   int     `json:"population_size"`
	GenomeLength     int     `json:"genome_length"`
	Generations      int     `json:"generations"`
	FinalMeanFitness float64 `json:"final_mean_fitness"`
	FinalBestFitness float64 `json:"final_best_fitness"`
}

// WriteRunArtifacts writes every artifact of a run under baseDir/<run id>
// and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, generationsFile), artifacts.Generations); err != nil {
		return "", err
	}
	if artifacts.Champion != nil {
		if err := writeJSON(filepath.Join(runDir, championFile), artifacts.Champion); err != nil {
			return "", err
		}
	}
	if err := WriteFitnessSeries(runDir, artifacts.Generations); err != nil {
		return "", err
	}
	if len(artifacts.Generations) > 0 {
		title := fmt.Sprintf("run %s", artifacts.Config.RunID)
		if err := WriteFitnessPlot(filepath.Join(runDir, fitnessPlotFile), title, artifacts.Generations); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory's files into outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, generationsFile, fitnessSeriesFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{championFile, fitnessPlotFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadGenerations(baseDir, runID string) ([]model.GenerationReport, bool, error) {
	var reports []model.GenerationReport
	ok, err := readJSON(filepath.Join(baseDir, runID, generationsFile), &reports)
	return reports, ok, err
}

func ReadChampion(baseDir, runID string) (model.ChampionRecord, bool, error) {
	var champion model.ChampionRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, championFile), &champion)
	return champion, ok, err
}

func WriteFitnessSeries(runDir string, reports []model.GenerationReport) error {
	path := filepath.Join(runDir, fitnessSeriesFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "mean_fitness", "best_fitness"}); err != nil {
		return err
	}
	for _, report := range reports {
		if err := writer.Write([]string{
			strconv.Itoa(report.Generation),
			strconv.FormatFloat(report.MeanFitness, 'f', -1, 64),
			strconv.FormatFloat(report.BestFitness, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFitnessSeries reads the CSV written by WriteFitnessSeries back into
// partial generation reports.
func ReadFitnessSeries(baseDir, runID string) ([]model.GenerationReport, bool, error) {
	path := filepath.Join(baseDir, runID, fitnessSeriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.GenerationReport{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < fitnessSeriesWidth {
		return nil, false, fmt.Errorf("fitness series header must have %d columns", fitnessSeriesWidth)
	}

	series := make([]model.GenerationReport, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < fitnessSeriesWidth {
			return nil, false, fmt.Errorf("fitness series row must have %d columns", fitnessSeriesWidth)
		}
		generation, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, false, err
		}
		mean, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		best, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, model.GenerationReport{Generation: generation, MeanFitness: mean, BestFitness: best})
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
