package storage

import (
	"context"

	"hypertune/internal/model"
)

// Store defines persistence operations for experiment summaries and
// their trial records.
type Store interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	SaveExperiment(ctx context.Context, experiment model.ExperimentRecord) error
	GetExperiment(ctx context.Context, id string) (model.ExperimentRecord, bool, error)
	ListExperiments(ctx context.Context) ([]model.ExperimentRecord, error)
	SaveTrials(ctx context.Context, experimentID string, trials []model.TrialRecord) error
	GetTrials(ctx context.Context, experimentID string) ([]model.TrialRecord, bool, error)
}
