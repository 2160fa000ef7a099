package augment

import (
	"fmt"
	"math/rand/v2"
)

// GridDistortion warps the canvas by stretching or squeezing each cell of a
// regular grid. Uncovered pixels take BorderValue.
type GridDistortion struct {
	P            float64
	NumSteps     int
	DistortLimit float64
	BorderValue  float64
}

// NewGridDistortion returns the operator with 5 steps, a 0.3 distortion
// limit and a constant 0 border.
func NewGridDistortion(p float64) *GridDistortion {
	return &GridDistortion{P: p, NumSteps: 5, DistortLimit: 0.3}
}

// GridParams holds one stretch factor per grid line on each axis.
type GridParams struct {
	XSteps []float64
	YSteps []float64

	// xs and ys are the per-column and per-row source coordinates
	xs []float64
	ys []float64
}

func (p GridParams) String() string {
	return fmt.Sprintf("xsteps=%.3v ysteps=%.3v", p.XSteps, p.YSteps)
}

func (g *GridDistortion) Name() string         { return "grid_distortion" }
func (g *GridDistortion) Probability() float64 { return g.P }

func (g *GridDistortion) Sample(rng *rand.Rand, c Canvas) (Params, error) {
	p := GridParams{
		XSteps: make([]float64, g.NumSteps+1),
		YSteps: make([]float64, g.NumSteps+1),
	}
	for i := range p.XSteps {
		p.XSteps[i] = 1 + uniform(rng, -g.DistortLimit, g.DistortLimit)
	}
	for i := range p.YSteps {
		p.YSteps[i] = 1 + uniform(rng, -g.DistortLimit, g.DistortLimit)
	}
	p.xs = gridCoords(c.Width, g.NumSteps, p.XSteps)
	p.ys = gridCoords(c.Height, g.NumSteps, p.YSteps)
	return p, nil
}

func (g *GridDistortion) Apply(t Target, p Params) (Target, error) {
	gp, ok := p.(GridParams)
	if !ok {
		return t, paramsError(g, p)
	}
	rows, cols := t.Data.Dims()
	if len(gp.xs) != cols || len(gp.ys) != rows {
		return t, fmt.Errorf("%w: grid sampled for %dx%d, target is %dx%d",
			ErrShapeMismatch, len(gp.ys), len(gp.xs), rows, cols)
	}
	out := remap(t.Data, rows, cols, interpolationFor(t.Role), g.BorderValue, func(x, y int) (float64, float64) {
		return gp.xs[x], gp.ys[y]
	})
	return Target{Role: t.Role, Data: out}, nil
}

// gridCoords maps each output index along an axis of the given size to a
// source coordinate. Cell i spans step pixels and is stretched by steps[i];
// the last cell takes any remainder and always ends on the last index.
func gridCoords(size, numSteps int, steps []float64) []float64 {
	coords := make([]float64, size)
	step := size / numSteps
	if step == 0 {
		for i := range coords {
			coords[i] = float64(i)
		}
		return coords
	}

	prev := 0.0
	for idx := 0; idx <= numSteps; idx++ {
		start := idx * step
		if start >= size {
			break
		}
		end := start + step
		var cur float64
		if idx == numSteps || end >= size {
			end = size
			cur = float64(size - 1)
		} else {
			cur = prev + float64(step)*steps[idx]
		}
		n := end - start
		for i := 0; i < n; i++ {
			if n == 1 {
				coords[start] = prev
				if end == size {
					coords[start] = cur
				}
				break
			}
			coords[start+i] = prev + (cur-prev)*float64(i)/float64(n-1)
		}
		prev = cur
	}
	return coords
}
