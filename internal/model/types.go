package model

import (
	"fmt"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Config is a fully resolved assignment of values to tunable parameters.
// Values are whatever the parameter's distribution produces: float64 for
// uniform ranges, int64 for integer ranges, and the literal option for
// constants and choices.
type Config map[string]any

func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Float resolves a parameter as float64, converting integer values.
func (c Config) Float(name string) (float64, bool) {
	v, ok := c[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (c Config) Int(name string) (int64, bool) {
	v, ok := c[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func (c Config) String(name string) (string, bool) {
	v, ok := c[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Mode declares whether lower or higher metric values are better.
type Mode string

const (
	ModeMin Mode = "min"
	ModeMax Mode = "max"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMin, ModeMax:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("mode must be min or max, got %q", s)
	}
}

// Better reports whether a is a strictly better metric value than b.
func (m Mode) Better(a, b float64) bool {
	if m == ModeMax {
		return a > b
	}
	return a < b
}

// Worse reports whether a is a strictly worse metric value than b.
func (m Mode) Worse(a, b float64) bool {
	if m == ModeMax {
		return a < b
	}
	return a > b
}

// TrialStatus is the lifecycle state of a trial. Transitions only move
// forward through the state machine; stopped, errored and completed are
// terminal.
type TrialStatus string

const (
	TrialPending   TrialStatus = "pending"
	TrialRunning   TrialStatus = "running"
	TrialPaused    TrialStatus = "paused"
	TrialStopped   TrialStatus = "stopped"
	TrialErrored   TrialStatus = "errored"
	TrialCompleted TrialStatus = "completed"
)

func (s TrialStatus) Terminal() bool {
	switch s {
	case TrialStopped, TrialErrored, TrialCompleted:
		return true
	}
	return false
}

// Report is one intermediate result emitted by a running trial. Reports
// are immutable once recorded and totally ordered per trial by Iteration.
type Report struct {
	TrialID   string    `json:"trial_id"`
	Iteration int       `json:"iteration"`
	Value     float64   `json:"value"`
	At        time.Time `json:"at"`
}

// TrialRecord is the persistent summary of a single trial.
type TrialRecord struct {
	VersionedRecord
	ID           string      `json:"id"`
	ExperimentID string      `json:"experiment_id"`
	Config       Config      `json:"config"`
	Status       TrialStatus `json:"status"`
	Reports      []Report    `json:"reports,omitempty"`
	FinalValue   *float64    `json:"final_value,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// ExperimentRecord is the persistent summary of a whole run.
type ExperimentRecord struct {
	VersionedRecord
	ID            string   `json:"id"`
	CreatedAtUTC  string   `json:"created_at_utc"`
	Objective     string   `json:"objective"`
	Searcher      string   `json:"searcher"`
	Scheduler     string   `json:"scheduler"`
	Metric        string   `json:"metric"`
	Mode          Mode     `json:"mode"`
	NumSamples    int      `json:"num_samples"`
	MaxConcurrent int      `json:"max_concurrent"`
	Seed          int64    `json:"seed"`
	Dispatched    int      `json:"dispatched"`
	BestTrialID   string   `json:"best_trial_id,omitempty"`
	BestValue     *float64 `json:"best_value,omitempty"`
	ElapsedMS     int64    `json:"elapsed_ms"`
}
