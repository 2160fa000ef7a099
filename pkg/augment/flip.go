package augment

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// HorizontalFlip mirrors every target left to right.
type HorizontalFlip struct {
	P float64
}

// FlipParams carries no random state; firing is the whole outcome.
type FlipParams struct{}

func (FlipParams) String() string { return "horizontal" }

func (f *HorizontalFlip) Name() string         { return "horizontal_flip" }
func (f *HorizontalFlip) Probability() float64 { return f.P }

func (f *HorizontalFlip) Sample(_ *rand.Rand, _ Canvas) (Params, error) {
	return FlipParams{}, nil
}

func (f *HorizontalFlip) Apply(t Target, p Params) (Target, error) {
	if _, ok := p.(FlipParams); !ok {
		return t, paramsError(f, p)
	}
	rows, cols := t.Data.Dims()
	dst := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dst.Set(y, cols-1-x, t.Data.At(y, x))
		}
	}
	return Target{Role: t.Role, Data: dst}, nil
}
