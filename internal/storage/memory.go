package storage

import (
	"context"
	"sort"
	"sync"

	"hypertune/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	experiments map[string]model.ExperimentRecord
	trials      map[string][]model.TrialRecord
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
	s.experiments = make(map[string]model.ExperimentRecord)
	s.trials = make(map[string][]model.TrialRecord)
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.experiments = make(map[string]model.ExperimentRecord)
	s.trials = make(map[string][]model.TrialRecord)
	return nil
}

func (s *MemoryStore) SaveExperiment(_ context.Context, experiment model.ExperimentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.experiments[experiment.ID] = experiment
	return nil
}

func (s *MemoryStore) GetExperiment(_ context.Context, id string) (model.ExperimentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	experiment, ok := s.experiments[id]
	return experiment, ok, nil
}

func (s *MemoryStore) ListExperiments(_ context.Context) ([]model.ExperimentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ExperimentRecord, 0, len(s.experiments))
	for _, experiment := range s.experiments {
		out = append(out, experiment)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC == out[j].CreatedAtUTC {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAtUTC > out[j].CreatedAtUTC
	})
	return out, nil
}

func (s *MemoryStore) SaveTrials(_ context.Context, experimentID string, trials []model.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.TrialRecord, len(trials))
	copy(out, trials)
	s.trials[experimentID] = out
	return nil
}

func (s *MemoryStore) GetTrials(_ context.Context, experimentID string) ([]model.TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials, ok := s.trials[experimentID]
	if !ok {
		return nil, false, nil
	}
	out := make([]model.TrialRecord, len(trials))
	copy(out, trials)
	return out, true, nil
}

var _ Store = (*MemoryStore)(nil)
