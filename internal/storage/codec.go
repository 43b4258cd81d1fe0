package storage

import (
	"encoding/json"
	"errors"

	"hypertune/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp sets the current schema and codec versions on a record before
// it is saved.
func Stamp(v *model.VersionedRecord) {
	v.SchemaVersion = CurrentSchemaVersion
	v.CodecVersion = CurrentCodecVersion
}

func EncodeExperiment(e model.ExperimentRecord) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeExperiment(data []byte) (model.ExperimentRecord, error) {
	var experiment model.ExperimentRecord
	if err := json.Unmarshal(data, &experiment); err != nil {
		return model.ExperimentRecord{}, err
	}
	if err := checkVersion(experiment.VersionedRecord); err != nil {
		return model.ExperimentRecord{}, err
	}
	return experiment, nil
}

func EncodeTrials(trials []model.TrialRecord) ([]byte, error) {
	return json.Marshal(trials)
}

func DecodeTrials(data []byte) ([]model.TrialRecord, error) {
	var trials []model.TrialRecord
	if err := json.Unmarshal(data, &trials); err != nil {
		return nil, err
	}
	for _, t := range trials {
		if err := checkVersion(t.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return trials, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
