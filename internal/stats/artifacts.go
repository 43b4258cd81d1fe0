package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"hypertune/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig is the experiment configuration as written into the run's
// artifacts directory.
type RunConfig struct {
	RunID           string     `json:"run_id"`
	CreatedAtUTC    string     `json:"created_at_utc"`
	Objective       string     `json:"objective"`
	Searcher        string     `json:"searcher"`
	Scheduler       string     `json:"scheduler"`
	Metric          string     `json:"metric"`
	Mode            model.Mode `json:"mode"`
	NumSamples      int        `json:"num_samples"`
	MaxConcurrent   int        `json:"max_concurrent"`
	Seed            int64      `json:"seed"`
	GracePeriod     int        `json:"grace_period,omitempty"`
	ReductionFactor float64    `json:"reduction_factor,omitempty"`
	MaxIterations   int        `json:"max_iterations,omitempty"`
}

// RunArtifacts is everything written for one finished run.
type RunArtifacts struct {
	Config      RunConfig           `json:"config"`
	BestTrialID string              `json:"best_trial_id,omitempty"`
	BestValue   *float64            `json:"best_value,omitempty"`
	Dispatched  int                 `json:"dispatched"`
	Trials      []model.TrialRecord `json:"trials"`
}

type RunIndexEntry struct {
	RunID        string   `json:"run_id"`
	CreatedAtUTC string   `json:"created_at_utc"`
	Objective    string   `json:"objective"`
	Searcher     string   `json:"searcher"`
	Scheduler    string   `json:"scheduler"`
	NumSamples   int      `json:"num_samples"`
	Dispatched   int      `json:"dispatched"`
	Seed         int64    `json:"seed"`
	BestValue    *float64 `json:"best_value,omitempty"`
}

// WriteRunArtifacts writes summary.json and reports.csv under
// baseDir/<run id>/ and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts); err != nil {
		return "", err
	}
	if err := writeReportsCSV(filepath.Join(runDir, "reports.csv"), artifacts.Trials); err != nil {
		return "", err
	}

	return runDir, nil
}

// AppendRunIndex upserts one entry in baseDir/run_index.json.
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
	sort.Slice(index, func(i, j int) bool {
		if index[i].CreatedAtUTC == index[j].CreatedAtUTC {
			return index[i].RunID < index[j].RunID
		}
		return index[i].CreatedAtUTC > index[j].CreatedAtUTC
	})
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
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
	return entries, nil
}

func writeReportsCSV(path string, trials []model.TrialRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"trial_id", "status", "iteration", "value"}); err != nil {
		return err
	}
	for _, t := range trials {
		for _, rep := range t.Reports {
			row := []string{
				t.ID,
				string(t.Status),
				strconv.Itoa(rep.Iteration),
				strconv.FormatFloat(rep.Value, 'g', -1, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
