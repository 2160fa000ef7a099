package augment

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ShiftScaleRotate applies a random similarity transform about the canvas
// centre followed by a translation. Uncovered pixels take BorderValue.
type ShiftScaleRotate struct {
	P float64

	// ShiftLimit bounds the translation as a fraction of each extent
	ShiftLimit float64

	// ScaleLimit bounds the zoom factor around 1
	ScaleLimit float64

	// RotateLimit bounds the rotation in degrees
	RotateLimit float64

	BorderValue float64
}

// NewShiftScaleRotate returns the operator with the given limits and a
// constant 0 border.
func NewShiftScaleRotate(p, shift, scale, rotate float64) *ShiftScaleRotate {
	return &ShiftScaleRotate{P: p, ShiftLimit: shift, ScaleLimit: scale, RotateLimit: rotate}
}

// AffineParams holds the sampled transform and the inverse mapping used to
// resample every target.
type AffineParams struct {
	Angle  float64
	Scale  float64
	DX, DY float64

	// inverse maps output pixel coordinates back into the source
	inverse *mat.Dense
}

func (p AffineParams) String() string {
	return fmt.Sprintf("angle=%.2f scale=%.3f dx=%.3f dy=%.3f", p.Angle, p.Scale, p.DX, p.DY)
}

// Forward maps a source pixel position (x, y) to its output position.
func (p AffineParams) Forward(x, y, width, height float64) (float64, float64) {
	m := affineMatrix(p.Angle, p.Scale, p.DX*width, p.DY*height, width/2, height/2)
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{x, y, 1}))
	return out.AtVec(0), out.AtVec(1)
}

func (s *ShiftScaleRotate) Name() string         { return "shift_scale_rotate" }
func (s *ShiftScaleRotate) Probability() float64 { return s.P }

func (s *ShiftScaleRotate) Sample(rng *rand.Rand, c Canvas) (Params, error) {
	p := AffineParams{
		Angle: uniform(rng, -s.RotateLimit, s.RotateLimit),
		Scale: 1 + uniform(rng, -s.ScaleLimit, s.ScaleLimit),
		DX:    uniform(rng, -s.ShiftLimit, s.ShiftLimit),
		DY:    uniform(rng, -s.ShiftLimit, s.ShiftLimit),
	}
	w, h := float64(c.Width), float64(c.Height)
	m := affineMatrix(p.Angle, p.Scale, p.DX*w, p.DY*h, w/2, h/2)
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("affine transform is singular: %w", err)
	}
	p.inverse = &inv
	return p, nil
}

func (s *ShiftScaleRotate) Apply(t Target, p Params) (Target, error) {
	ap, ok := p.(AffineParams)
	if !ok || ap.inverse == nil {
		return t, paramsError(s, p)
	}
	rows, cols := t.Data.Dims()
	inv := ap.inverse.RawMatrix()
	a := inv.Data
	st := inv.Stride
	out := remap(t.Data, rows, cols, interpolationFor(t.Role), s.BorderValue, func(x, y int) (float64, float64) {
		fx, fy := float64(x), float64(y)
		return a[0]*fx + a[1]*fy + a[2], a[st]*fx + a[st+1]*fy + a[st+2]
	})
	return Target{Role: t.Role, Data: out}, nil
}

// affineMatrix builds the homogeneous 3x3 matrix of a rotation by angle
// degrees and a zoom by scale about (cx, cy), followed by a shift (tx, ty).
// Positive angles rotate counter-clockwise on screen.
func affineMatrix(angle, scale, tx, ty, cx, cy float64) *mat.Dense {
	sin, cos := math.Sincos(angle * math.Pi / 180)
	alpha := scale * cos
	beta := scale * sin
	return mat.NewDense(3, 3, []float64{
		alpha, beta, (1-alpha)*cx - beta*cy + tx,
		-beta, alpha, beta*cx + (1-alpha)*cy + ty,
		0, 0, 1,
	})
}
