// Package augment implements the stochastic geometric and photometric
// operators used to perturb paired image/mask slices, and the Compose chain
// that evaluates them with one shared random outcome per invocation.
package augment

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Operator errors
var (
	ErrNoTargets     = errors.New("augment: no targets")
	ErrShapeMismatch = errors.New("augment: targets do not share one spatial shape")
	ErrEmptyCrop     = errors.New("augment: crop window is empty")
	ErrInvalidParams = errors.New("augment: params do not belong to operator")
)

// Role tells an operator how a target must be treated.
type Role int

const (
	// RoleImage targets hold intensities and may be smoothly resampled.
	RoleImage Role = iota
	// RoleMask targets hold class indices and are resampled by nearest neighbour.
	RoleMask
)

func (r Role) String() string {
	switch r {
	case RoleImage:
		return "image"
	case RoleMask:
		return "mask"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Target is one array taking part in an invocation.
type Target struct {
	Role Role
	Data *mat.Dense
}

// Canvas describes the invocation state an operator samples its parameters
// against. It is computed once per operator from the primary target.
type Canvas struct {
	Height int
	Width  int

	// MaxIntensity is the largest absolute value over every image target,
	// or 1 when all image targets are zero.
	MaxIntensity float64
}

// Params is one operator's realised random parameters.
type Params interface {
	fmt.Stringer
}

// Operator is a single step of a transform chain.
//
// Sample is called at most once per invocation; the returned Params are then
// passed to Apply for every target so all targets see the same outcome.
type Operator interface {
	Name() string
	Probability() float64
	Sample(rng *rand.Rand, c Canvas) (Params, error)
	Apply(t Target, p Params) (Target, error)
}

// fires decides whether an operator with activation probability p runs.
// Always-applied operators do not consume randomness.
func fires(rng *rand.Rand, p float64) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return rng.Float64() < p
}

// uniform draws from [lo, hi).
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func canvasOf(targets []Target) Canvas {
	h, w := targets[0].Data.Dims()
	c := Canvas{Height: h, Width: w}
	for _, t := range targets {
		if t.Role != RoleImage {
			continue
		}
		raw := t.Data.RawMatrix()
		for r := 0; r < raw.Rows; r++ {
			row := raw.Data[r*raw.Stride : r*raw.Stride+raw.Cols]
			c.MaxIntensity = math.Max(c.MaxIntensity, math.Max(math.Abs(floats.Max(row)), math.Abs(floats.Min(row))))
		}
	}
	if c.MaxIntensity == 0 {
		c.MaxIntensity = 1
	}
	return c
}

func checkShapes(targets []Target) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}
	h, w := targets[0].Data.Dims()
	for i, t := range targets[1:] {
		th, tw := t.Data.Dims()
		if th != h || tw != w {
			return fmt.Errorf("%w: target %d (%s) is %dx%d, primary is %dx%d",
				ErrShapeMismatch, i+1, t.Role, th, tw, h, w)
		}
	}
	return nil
}

func paramsError(op Operator, p Params) error {
	return fmt.Errorf("%w: %s got %T", ErrInvalidParams, op.Name(), p)
}
