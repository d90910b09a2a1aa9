package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"seekers/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	runOrder    map[string]int
	nextOrder   int
	reports     map[string][]model.GenerationReport
	champions   map[string]model.ChampionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.runOrder = make(map[string]int)
	s.reports = make(map[string][]model.GenerationReport)
	s.champions = make(map[string]model.ChampionRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if _, ok := s.runOrder[run.ID]; !ok {
		s.runOrder[run.ID] = s.nextOrder
		s.nextOrder++
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			// Prefer later saved runs for equal timestamps.
			return s.runOrder[runs[i].ID] > s.runOrder[runs[j].ID]
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) SaveGenerationReports(_ context.Context, runID string, reports []model.GenerationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.GenerationReport, len(reports))
	copy(copied, reports)
	s.reports[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationReports(_ context.Context, runID string) ([]model.GenerationReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports, ok := s.reports[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationReport, len(reports))
	copy(copied, reports)
	return copied, true, nil
}

func (s *MemoryStore) SaveChampion(_ context.Context, champion model.ChampionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.champions[champion.RunID] = champion
	return nil
}

func (s *MemoryStore) GetChampion(_ context.Context, runID string) (model.ChampionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	champion, ok := s.champions[runID]
	return champion, ok, nil
}
