package augment

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// LongestMaxSize rescales the canvas so its longer side equals MaxSize,
// keeping the aspect ratio.
type LongestMaxSize struct {
	MaxSize int
	P       float64
}

// ResizeParams holds the output size of a resize.
type ResizeParams struct {
	Height int
	Width  int
}

func (p ResizeParams) String() string {
	return fmt.Sprintf("%dx%d", p.Height, p.Width)
}

func (l *LongestMaxSize) Name() string         { return "longest_max_size" }
func (l *LongestMaxSize) Probability() float64 { return l.P }

func (l *LongestMaxSize) Sample(_ *rand.Rand, c Canvas) (Params, error) {
	scale := float64(l.MaxSize) / float64(max(c.Height, c.Width))
	return ResizeParams{
		Height: max(1, int(math.Round(float64(c.Height)*scale))),
		Width:  max(1, int(math.Round(float64(c.Width)*scale))),
	}, nil
}

func (l *LongestMaxSize) Apply(t Target, p Params) (Target, error) {
	rp, ok := p.(ResizeParams)
	if !ok {
		return t, paramsError(l, p)
	}
	rows, cols := t.Data.Dims()
	if rows == rp.Height && cols == rp.Width {
		return Target{Role: t.Role, Data: mat.DenseCopyOf(t.Data)}, nil
	}
	return Target{Role: t.Role, Data: resize(t.Data, rp.Height, rp.Width, interpolationFor(t.Role))}, nil
}

// PadToSize brings the canvas to exactly Height x Width. Short axes are
// padded with Value, split evenly with the extra pixel at the bottom/right.
// Long axes are trimmed around the centre.
type PadToSize struct {
	Height int
	Width  int
	Value  float64
	P      float64
}

// PadParams holds the offset of the source inside the output. Negative
// offsets trim the source.
type PadParams struct {
	Top    int
	Left   int
	Height int
	Width  int
}

func (p PadParams) String() string {
	return fmt.Sprintf("top=%d left=%d -> %dx%d", p.Top, p.Left, p.Height, p.Width)
}

func (pd *PadToSize) Name() string         { return "pad_to_size" }
func (pd *PadToSize) Probability() float64 { return pd.P }

func (pd *PadToSize) Sample(_ *rand.Rand, c Canvas) (Params, error) {
	return PadParams{
		Top:    centreOffset(pd.Height, c.Height),
		Left:   centreOffset(pd.Width, c.Width),
		Height: pd.Height,
		Width:  pd.Width,
	}, nil
}

// centreOffset places a length-n span centred in a length-target span.
func centreOffset(target, n int) int {
	if n <= target {
		return (target - n) / 2
	}
	return -((n - target) / 2)
}

func (pd *PadToSize) Apply(t Target, p Params) (Target, error) {
	pp, ok := p.(PadParams)
	if !ok {
		return t, paramsError(pd, p)
	}
	rows, cols := t.Data.Dims()
	dst := mat.NewDense(pp.Height, pp.Width, nil)
	for y := 0; y < pp.Height; y++ {
		sy := y - pp.Top
		for x := 0; x < pp.Width; x++ {
			sx := x - pp.Left
			if sy < 0 || sx < 0 || sy >= rows || sx >= cols {
				dst.Set(y, x, pd.Value)
				continue
			}
			dst.Set(y, x, t.Data.At(sy, sx))
		}
	}
	return Target{Role: t.Role, Data: dst}, nil
}

// Crop cuts the window [XMin, XMax) x [YMin, YMax) out of the canvas.
// The window is clamped to the canvas; a window with nothing left after
// clamping is an error.
type Crop struct {
	XMin, YMin, XMax, YMax int
	P                      float64
}

// CropParams holds the clamped window.
type CropParams struct {
	XMin, YMin, XMax, YMax int
}

func (p CropParams) String() string {
	return fmt.Sprintf("x=[%d,%d) y=[%d,%d)", p.XMin, p.XMax, p.YMin, p.YMax)
}

func (c *Crop) Name() string         { return "crop" }
func (c *Crop) Probability() float64 { return c.P }

func (c *Crop) Sample(_ *rand.Rand, cv Canvas) (Params, error) {
	p := CropParams{
		XMin: min(max(c.XMin, 0), cv.Width),
		YMin: min(max(c.YMin, 0), cv.Height),
		XMax: min(max(c.XMax, 0), cv.Width),
		YMax: min(max(c.YMax, 0), cv.Height),
	}
	if p.XMax <= p.XMin || p.YMax <= p.YMin {
		return nil, fmt.Errorf("%w: window x=[%d,%d) y=[%d,%d) on %dx%d canvas",
			ErrEmptyCrop, c.XMin, c.XMax, c.YMin, c.YMax, cv.Height, cv.Width)
	}
	return p, nil
}

func (c *Crop) Apply(t Target, p Params) (Target, error) {
	cp, ok := p.(CropParams)
	if !ok {
		return t, paramsError(c, p)
	}
	rows, cols := t.Data.Dims()
	if cp.XMax > cols || cp.YMax > rows {
		return t, fmt.Errorf("%w: window exceeds %dx%d target", ErrShapeMismatch, rows, cols)
	}
	view := t.Data.Slice(cp.YMin, cp.YMax, cp.XMin, cp.XMax)
	return Target{Role: t.Role, Data: mat.DenseCopyOf(view)}, nil
}
