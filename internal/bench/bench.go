package bench

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"hypertune/internal/model"
	"hypertune/internal/runner"
	"hypertune/internal/space"
)

// Definition is a named synthetic optimization problem: a parameter
// space and the objective evaluated over it. These back the CLI so
// experiments can be run without user code.
type Definition struct {
	Name        string
	Description string
	Mode        model.Mode
	Space       func() (*space.Space, error)
	Objective   runner.Objective
}

func registry() map[string]Definition {
	return map[string]Definition{
		"tutorial":  tutorial(),
		"sphere":    sphere(),
		"rastrigin": rastrigin(),
	}
}

func Lookup(name string) (Definition, error) {
	def, ok := registry()[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown objective: %s", name)
	}
	return def, nil
}

func Names() []string {
	defs := registry()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// tutorial is the classic two-parameter curve: the x term decays with
// training progress while the y term is a constant offset, so good
// trials separate from bad ones within a few iterations.
func tutorial() Definition {
	return Definition{
		Name:        "tutorial",
		Description: "1/(0.1 + x*step/100) + 0.1*y over 100 steps",
		Mode:        model.ModeMin,
		Space: func() (*space.Space, error) {
			x, err := space.NewUniform(space.Range[float64]{Min: 0, Max: 20})
			if err != nil {
				return nil, err
			}
			y, err := space.NewUniform(space.Range[float64]{Min: -100, Max: 100})
			if err != nil {
				return nil, err
			}
			return space.New(map[string]space.Distribution{
				"x":     x,
				"y":     y,
				"steps": space.NewConstant(int64(100)),
			})
		},
		Objective: func(ctx context.Context, cfg model.Config, rep *runner.Reporter) error {
			x, ok := cfg.Float("x")
			if !ok {
				return errors.New("missing parameter x")
			}
			y, ok := cfg.Float("y")
			if !ok {
				return errors.New("missing parameter y")
			}
			steps, ok := cfg.Int("steps")
			if !ok {
				return errors.New("missing parameter steps")
			}

			for step := int64(0); step < steps; step++ {
				value := 1.0/(0.1+x*float64(step)/100.0) + 0.1*y
				if err := rep.Report(value); err != nil {
					if errors.Is(err, runner.ErrTrialStopped) {
						return nil
					}
					return err
				}
			}
			return nil
		},
	}
}

func sphere() Definition {
	return Definition{
		Name:        "sphere",
		Description: "x^2 + y^2, minimum at the origin",
		Mode:        model.ModeMin,
		Space: func() (*space.Space, error) {
			x, err := space.NewUniform(space.Range[float64]{Min: -5, Max: 5})
			if err != nil {
				return nil, err
			}
			y, err := space.NewUniform(space.Range[float64]{Min: -5, Max: 5})
			if err != nil {
				return nil, err
			}
			return space.New(map[string]space.Distribution{"x": x, "y": y})
		},
		Objective: quadratic(50, func(x, y float64) float64 {
			return x*x + y*y
		}),
	}
}

func rastrigin() Definition {
	return Definition{
		Name:        "rastrigin",
		Description: "2-dimensional Rastrigin function",
		Mode:        model.ModeMin,
		Space: func() (*space.Space, error) {
			x, err := space.NewUniform(space.Range[float64]{Min: -5.12, Max: 5.12})
			if err != nil {
				return nil, err
			}
			y, err := space.NewUniform(space.Range[float64]{Min: -5.12, Max: 5.12})
			if err != nil {
				return nil, err
			}
			return space.New(map[string]space.Distribution{"x": x, "y": y})
		},
		Objective: quadratic(50, func(x, y float64) float64 {
			return 20 +
				x*x - 10*math.Cos(2*math.Pi*x) +
				y*y - 10*math.Cos(2*math.Pi*y)
		}),
	}
}

// quadratic wraps a two-variable function into an objective that
// reports a value converging toward f(x, y) over the given number of
// steps, mimicking a training curve.
func quadratic(steps int, f func(x, y float64) float64) runner.Objective {
	return func(ctx context.Context, cfg model.Config, rep *runner.Reporter) error {
		x, ok := cfg.Float("x")
		if !ok {
			return errors.New("missing parameter x")
		}
		y, ok := cfg.Float("y")
		if !ok {
			return errors.New("missing parameter y")
		}

		target := f(x, y)
		for step := 0; step < steps; step++ {
			// Decaying offset so intermediate reports improve over time.
			value := target + 1.0/float64(step+1)
			if err := rep.Report(value); err != nil {
				if errors.Is(err, runner.ErrTrialStopped) {
					return nil
				}
				return err
			}
		}
		return nil
	}
}
