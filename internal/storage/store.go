package storage

import (
	"context"

	"seekers/internal/model"
)

// Store defines persistence for run history. Live populations are never
// stored.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	SaveGenerationReports(ctx context.Context, runID string, reports []model.GenerationReport) error
	GetGenerationReports(ctx context.Context, runID string) ([]model.GenerationReport, bool, error)
	SaveChampion(ctx context.Context, champion model.ChampionRecord) error
	GetChampion(ctx context.Context, runID string) (model.ChampionRecord, bool, error)
}
