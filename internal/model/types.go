package model

import "math"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Vec2 is a point or displacement in world coordinates. Y grows downward.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Distance returns the Euclidean distance between v and o.
func (v Vec2) Distance(o Vec2) float64 {
	return math.Hypot(o.X-v.X, o.Y-v.Y)
}

// Size is a width/height pair used for world bounds and agent bodies.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Color is an opaque identity tag carried by an agent and inherited by its
// crossover children.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	CreatedAtUTC   string  `json:"created_at_utc"`
	Seed           int64   `json:"seed"`
	PopulationSize int     `json:"population_size"`
	GenomeLength   int     `json:"genome_length"`
	MutationRate   float64 `json:"mutation_rate"`
	Generations    int     `json:"generations"`
	Ticks          int64   `json:"ticks"`
	FinalMean      float64 `json:"final_mean_fitness"`
	FinalBest      float64 `json:"final_best_fitness"`
}

// GenerationReport summarizes one completed generation.
type GenerationReport struct {
	Generation     int     `json:"generation"`
	MeanFitness    float64 `json:"mean_fitness"`
	BestFitness    float64 `json:"best_fitness"`
	WorstFitness   float64 `json:"worst_fitness"`
	MeanNormalized float64 `json:"mean_normalized"`
	MatingPoolSize int     `json:"mating_pool_size"`
	Selection      string  `json:"selection"`
	Ticks          int     `json:"ticks"`
}

// ChampionRecord is the closest agent of a run's last evaluated generation.
// It is kept for reporting only.
type ChampionRecord struct {
	VersionedRecord
	RunID      string  `json:"run_id"`
	Generation int     `json:"generation"`
	Fitness    float64 `json:"fitness"`
	Position   Vec2    `json:"position"`
	Color      Color   `json:"color"`
	Genome     string  `json:"genome"`
}
