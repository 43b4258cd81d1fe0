package space

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/exp/constraints"

	"hypertune/internal/model"
)

// ErrInvalidDomain marks a malformed parameter space. It is fatal at
// construction time; a Space that was built successfully never fails to
// sample.
var ErrInvalidDomain = errors.New("invalid domain")

// Distribution draws one concrete value for a parameter. Implementations
// are side-effect free: the only state touched is the caller's random
// source, so sampling is reproducible given a seeded generator.
type Distribution interface {
	Sample(rng *rand.Rand) any
}

type constant struct {
	value any
}

func (c constant) Sample(_ *rand.Rand) any { return c.value }

// NewConstant returns a distribution that always yields v.
func NewConstant(v any) Distribution {
	return constant{value: v}
}

type uniformFloat struct {
	lo, hi float64
}

func (u uniformFloat) Sample(rng *rand.Rand) any {
	return u.lo + rng.Float64()*(u.hi-u.lo)
}

type uniformInt struct {
	lo, hi int64
}

func (u uniformInt) Sample(rng *rand.Rand) any {
	return u.lo + rng.Int63n(u.hi-u.lo+1)
}

// Range bounds a numeric parameter. Min must be strictly less than Max.
type Range[T constraints.Integer | constraints.Float] struct {
	Min T
	Max T
}

// NewUniform returns a uniform distribution over r. Integer ranges are
// inclusive of both bounds and sample int64; float ranges sample float64
// from the half-open interval [Min, Max).
func NewUniform[T constraints.Integer | constraints.Float](r Range[T]) (Distribution, error) {
	if !(r.Min < r.Max) {
		return nil, fmt.Errorf("%w: uniform requires min < max, got [%v, %v]", ErrInvalidDomain, r.Min, r.Max)
	}
	switch any(r.Min).(type) {
	case float32, float64:
		return uniformFloat{lo: float64(r.Min), hi: float64(r.Max)}, nil
	default:
		return uniformInt{lo: int64(r.Min), hi: int64(r.Max)}, nil
	}
}

type choice struct {
	options []any
}

func (c choice) Sample(rng *rand.Rand) any {
	return c.options[rng.Intn(len(c.options))]
}

// NewChoice returns a categorical distribution over the given options.
func NewChoice(options ...any) (Distribution, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("%w: choice requires at least one option", ErrInvalidDomain)
	}
	out := make([]any, len(options))
	copy(out, options)
	return choice{options: out}, nil
}

// Options exposes the option set of a choice distribution, used by
// deterministic sweeps. The second return is false for non-categorical
// distributions (constants count as a single-option category).
func Options(d Distribution) ([]any, bool) {
	switch v := d.(type) {
	case choice:
		out := make([]any, len(v.options))
		copy(out, v.options)
		return out, true
	case constant:
		return []any{v.value}, true
	default:
		return nil, false
	}
}

// Space is an immutable description of the tunable parameters of an
// experiment: one named distribution per parameter.
type Space struct {
	names []string
	dists map[string]Distribution
}

func New(params map[string]Distribution) (*Space, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: space requires at least one parameter", ErrInvalidDomain)
	}
	names := make([]string, 0, len(params))
	dists := make(map[string]Distribution, len(params))
	for name, dist := range params {
		if name == "" {
			return nil, fmt.Errorf("%w: parameter name must not be empty", ErrInvalidDomain)
		}
		if dist == nil {
			return nil, fmt.Errorf("%w: parameter %s has no distribution", ErrInvalidDomain, name)
		}
		names = append(names, name)
		dists[name] = dist
	}
	sort.Strings(names)
	return &Space{names: names, dists: dists}, nil
}

// Names returns the parameter names in the fixed sampling order.
func (s *Space) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Space) Distribution(name string) (Distribution, bool) {
	d, ok := s.dists[name]
	return d, ok
}

// Sample draws a concrete Config. Parameters are drawn in sorted name
// order so that identical seeds yield identical configs.
func (s *Space) Sample(rng *rand.Rand) model.Config {
	cfg := make(model.Config, len(s.names))
	for _, name := range s.names {
		cfg[name] = s.dists[name].Sample(rng)
	}
	return cfg
}

// Vector projects a config onto a fixed-order float64 vector, one entry
// per parameter. It fails for parameters whose values are not numeric;
// model-based searchers require a fully numeric space.
func (s *Space) Vector(cfg model.Config) ([]float64, error) {
	vec := make([]float64, len(s.names))
	for i, name := range s.names {
		v, ok := cfg.Float(name)
		if !ok {
			return nil, fmt.Errorf("parameter %s is not numeric", name)
		}
		vec[i] = v
	}
	return vec, nil
}
