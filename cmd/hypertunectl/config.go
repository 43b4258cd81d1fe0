package main

import (
	"encoding/json"
	"flag"
	"math"
	"os"
	"sort"

	"hypertune/internal/model"
	hyperapi "hypertune/pkg/hypertune"
)

func loadRunRequestFromConfig(path string) (hyperapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hyperapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return hyperapi.RunRequest{}, err
	}

	var req hyperapi.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["objective"]); ok {
		req.Objective = v
	}
	if v, ok := asString(raw["searcher"]); ok {
		req.Searcher = v
	}
	if v, ok := asString(raw["scheduler"]); ok {
		req.Scheduler = v
	}
	if v, ok := asString(raw["metric"]); ok {
		req.Metric = v
	}
	if v, ok := asString(raw["mode"]); ok {
		req.Mode = v
	}
	if v, ok := asInt(raw["num_samples"]); ok {
		req.NumSamples = v
	}
	if v, ok := asInt(raw["max_concurrent"]); ok {
		req.MaxConcurrent = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["grace_period"]); ok {
		req.GracePeriod = v
	}
	if v, ok := asFloat64(raw["reduction_factor"]); ok {
		req.ReductionFactor = v
	}
	if v, ok := asInt(raw["max_iterations"]); ok {
		req.MaxIterations = v
	}
	if points, ok := raw["seed_points"].([]any); ok {
		for _, p := range points {
			m, ok := p.(map[string]any)
			if !ok {
				continue
			}
			cfg := make(model.Config, len(m))
			for k, v := range m {
				cfg[k] = v
			}
			req.SeedPoints = append(req.SeedPoints, cfg)
		}
	}
	return req, nil
}

type runFlagValues struct {
	objective       string
	searcher        string
	scheduler       string
	mode            string
	numSamples      int
	maxConcurrent   int
	seed            int64
	gracePeriod     int
	reductionFactor float64
	maxIterations   int
}

// applyRunFlags overlays explicitly set flags onto a request loaded
// from a config file; with no config file every flag applies.
func applyRunFlags(fs *flag.FlagSet, req *hyperapi.RunRequest, values runFlagValues) {
	set := setFlags(fs)
	apply := func(name string, empty bool, f func()) {
		if _, ok := set[name]; ok || empty {
			f()
		}
	}

	apply("objective", req.Objective == "", func() { req.Objective = values.objective })
	apply("searcher", req.Searcher == "", func() { req.Searcher = values.searcher })
	apply("scheduler", req.Scheduler == "", func() { req.Scheduler = values.scheduler })
	apply("mode", req.Mode == "", func() { req.Mode = values.mode })
	apply("samples", req.NumSamples == 0, func() { req.NumSamples = values.numSamples })
	apply("max-concurrent", req.MaxConcurrent == 0, func() { req.MaxConcurrent = values.maxConcurrent })
	apply("seed", req.Seed == 0, func() { req.Seed = values.seed })
	apply("grace-period", req.GracePeriod == 0, func() { req.GracePeriod = values.gracePeriod })
	apply("reduction-factor", req.ReductionFactor == 0, func() { req.ReductionFactor = values.reductionFactor })
	apply("max-iterations", req.MaxIterations == 0, func() { req.MaxIterations = values.maxIterations })
}

func setFlags(fs *flag.FlagSet) map[string]struct{} {
	out := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) {
		out[f.Name] = struct{}{}
	})
	return out
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asInt64(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func asFloat64(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func sortedKeys(cfg model.Config) []string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
