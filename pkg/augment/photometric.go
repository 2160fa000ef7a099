package augment

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// RandomBrightnessContrast scales and offsets image intensities.
// Masks pass through untouched.
type RandomBrightnessContrast struct {
	P               float64
	BrightnessLimit float64
	ContrastLimit   float64
}

// NewRandomBrightnessContrast returns the operator with 0.2 limits.
func NewRandomBrightnessContrast(p float64) *RandomBrightnessContrast {
	return &RandomBrightnessContrast{P: p, BrightnessLimit: 0.2, ContrastLimit: 0.2}
}

// BrightnessContrastParams maps v to v*Alpha + Beta*Max.
type BrightnessContrastParams struct {
	Alpha float64
	Beta  float64
	Max   float64
}

func (p BrightnessContrastParams) String() string {
	return fmt.Sprintf("alpha=%.4f beta=%.4f", p.Alpha, p.Beta)
}

func (b *RandomBrightnessContrast) Name() string         { return "random_brightness_contrast" }
func (b *RandomBrightnessContrast) Probability() float64 { return b.P }

func (b *RandomBrightnessContrast) Sample(rng *rand.Rand, c Canvas) (Params, error) {
	return BrightnessContrastParams{
		Alpha: 1 + uniform(rng, -b.ContrastLimit, b.ContrastLimit),
		Beta:  uniform(rng, -b.BrightnessLimit, b.BrightnessLimit),
		Max:   c.MaxIntensity,
	}, nil
}

func (b *RandomBrightnessContrast) Apply(t Target, p Params) (Target, error) {
	bp, ok := p.(BrightnessContrastParams)
	if !ok {
		return t, paramsError(b, p)
	}
	if t.Role != RoleImage {
		return t, nil
	}
	var dst mat.Dense
	dst.Apply(func(_, _ int, v float64) float64 {
		return v*bp.Alpha + bp.Beta*bp.Max
	}, t.Data)
	return Target{Role: t.Role, Data: &dst}, nil
}

// RandomGamma applies a power curve to image intensities relative to the
// invocation's largest intensity. Masks pass through untouched.
type RandomGamma struct {
	P float64

	// GammaLimit bounds gamma*100, e.g. [80, 120]
	GammaLimit [2]float64
}

// NewRandomGamma returns the operator with a [80, 120] limit.
func NewRandomGamma(p float64) *RandomGamma {
	return &RandomGamma{P: p, GammaLimit: [2]float64{80, 120}}
}

// GammaParams holds the sampled exponent.
type GammaParams struct {
	Gamma float64
	Max   float64
}

func (p GammaParams) String() string {
	return fmt.Sprintf("gamma=%.4f", p.Gamma)
}

func (g *RandomGamma) Name() string         { return "random_gamma" }
func (g *RandomGamma) Probability() float64 { return g.P }

func (g *RandomGamma) Sample(rng *rand.Rand, c Canvas) (Params, error) {
	return GammaParams{
		Gamma: uniform(rng, g.GammaLimit[0], g.GammaLimit[1]) / 100,
		Max:   c.MaxIntensity,
	}, nil
}

func (g *RandomGamma) Apply(t Target, p Params) (Target, error) {
	gp, ok := p.(GammaParams)
	if !ok {
		return t, paramsError(g, p)
	}
	if t.Role != RoleImage {
		return t, nil
	}
	var dst mat.Dense
	dst.Apply(func(_, _ int, v float64) float64 {
		mag := gp.Max * math.Pow(math.Abs(v)/gp.Max, gp.Gamma)
		if v < 0 {
			return -mag
		}
		return mag
	}, t.Data)
	return Target{Role: t.Role, Data: &dst}, nil
}
