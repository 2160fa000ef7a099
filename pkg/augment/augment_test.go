package augment

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// newRand returns a deterministic random stream for tests
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// gradient creates a rows x cols matrix with distinct values
func gradient(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.Set(y, x, float64(y*cols+x+1))
		}
	}
	return m
}

// classSet collects the distinct values of a matrix
func classSet(m *mat.Dense) map[float64]bool {
	set := make(map[float64]bool)
	rows, cols := m.Dims()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			set[m.At(y, x)] = true
		}
	}
	return set
}

func TestHorizontalFlip(t *testing.T) {
	src := gradient(3, 4)
	op := &HorizontalFlip{P: 1}

	params, err := op.Sample(newRand(1), Canvas{Height: 3, Width: 4})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	for _, role := range []Role{RoleImage, RoleMask} {
		out, err := op.Apply(Target{Role: role, Data: src}, params)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				if got, want := out.Data.At(y, x), src.At(y, 3-x); got != want {
					t.Errorf("%s (%d,%d): expected %v, got %v", role, y, x, want, got)
				}
			}
		}
	}

	if src.At(0, 0) != 1 {
		t.Error("Flip modified its input")
	}
}

func TestApplyRejectsForeignParams(t *testing.T) {
	op := &HorizontalFlip{P: 1}
	_, err := op.Apply(Target{Data: gradient(2, 2)}, GammaParams{Gamma: 1, Max: 1})
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}

func TestLongestMaxSize(t *testing.T) {
	tests := []struct {
		name         string
		rows, cols   int
		maxSize      int
		wantH, wantW int
	}{
		{"landscape", 50, 80, 64, 40, 64},
		{"portrait", 80, 50, 64, 64, 40},
		{"square upscale", 16, 16, 64, 64, 64},
		{"thin strip keeps one row", 1, 200, 64, 1, 64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			op := &LongestMaxSize{MaxSize: tc.maxSize, P: 1}
			params, err := op.Sample(nil, Canvas{Height: tc.rows, Width: tc.cols})
			if err != nil {
				t.Fatalf("Sample failed: %v", err)
			}
			for _, role := range []Role{RoleImage, RoleMask} {
				out, err := op.Apply(Target{Role: role, Data: gradient(tc.rows, tc.cols)}, params)
				if err != nil {
					t.Fatalf("Apply failed: %v", err)
				}
				h, w := out.Data.Dims()
				if h != tc.wantH || w != tc.wantW {
					t.Errorf("%s: expected %dx%d, got %dx%d", role, tc.wantH, tc.wantW, h, w)
				}
			}
		})
	}
}

func TestResizeMaskKeepsClasses(t *testing.T) {
	src := mat.NewDense(10, 10, nil)
	for y := 0; y < 10; y++ {
		for x := 5; x < 10; x++ {
			src.Set(y, x, 2)
		}
	}
	src.Set(0, 0, 1)

	out := resize(src, 23, 17, Nearest)
	for v := range classSet(out) {
		if v != 0 && v != 1 && v != 2 {
			t.Errorf("Nearest resize introduced class %v", v)
		}
	}
}

func TestPadToSize(t *testing.T) {
	op := &PadToSize{Height: 64, Width: 64, P: 1}
	params, err := op.Sample(nil, Canvas{Height: 40, Width: 64})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	pp := params.(PadParams)
	if pp.Top != 12 || pp.Left != 0 {
		t.Errorf("Expected offset (12,0), got (%d,%d)", pp.Top, pp.Left)
	}

	src := gradient(40, 64)
	out, err := op.Apply(Target{Role: RoleImage, Data: src}, params)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	h, w := out.Data.Dims()
	if h != 64 || w != 64 {
		t.Fatalf("Expected 64x64, got %dx%d", h, w)
	}
	if out.Data.At(11, 10) != 0 || out.Data.At(52, 10) != 0 {
		t.Error("Expected constant 0 padding above and below the source")
	}
	if out.Data.At(12, 0) != src.At(0, 0) || out.Data.At(51, 63) != src.At(39, 63) {
		t.Error("Source not placed at the centred offset")
	}
}

func TestPadToSizeTrimsLongAxis(t *testing.T) {
	op := &PadToSize{Height: 4, Width: 8, P: 1}
	params, _ := op.Sample(nil, Canvas{Height: 8, Width: 8})
	src := gradient(8, 8)
	out, err := op.Apply(Target{Role: RoleMask, Data: src}, params)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	h, w := out.Data.Dims()
	if h != 4 || w != 8 {
		t.Fatalf("Expected 4x8, got %dx%d", h, w)
	}
	if out.Data.At(0, 0) != src.At(2, 0) {
		t.Errorf("Expected centre trim starting at row 2, got value %v", out.Data.At(0, 0))
	}
}

func TestCrop(t *testing.T) {
	src := gradient(30, 30)

	t.Run("window", func(t *testing.T) {
		op := &Crop{XMin: 5, YMin: 5, XMax: 25, YMax: 25, P: 1}
		params, err := op.Sample(nil, Canvas{Height: 30, Width: 30})
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		out, err := op.Apply(Target{Data: src}, params)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		h, w := out.Data.Dims()
		if h != 20 || w != 20 {
			t.Errorf("Expected 20x20, got %dx%d", h, w)
		}
		if out.Data.At(0, 0) != src.At(5, 5) {
			t.Errorf("Expected top-left %v, got %v", src.At(5, 5), out.Data.At(0, 0))
		}
	})

	t.Run("clamped", func(t *testing.T) {
		op := &Crop{XMin: -5, YMin: -5, XMax: 40, YMax: 10, P: 1}
		params, err := op.Sample(nil, Canvas{Height: 30, Width: 30})
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		cp := params.(CropParams)
		if cp != (CropParams{XMin: 0, YMin: 0, XMax: 30, YMax: 10}) {
			t.Errorf("Unexpected clamped window %v", cp)
		}
	})

	t.Run("empty", func(t *testing.T) {
		op := &Crop{XMin: 35, YMin: 0, XMax: 40, YMax: 10, P: 1}
		_, err := op.Sample(nil, Canvas{Height: 30, Width: 30})
		if !errors.Is(err, ErrEmptyCrop) {
			t.Errorf("Expected ErrEmptyCrop, got %v", err)
		}
	})
}

func TestPhotometricSkipsMasks(t *testing.T) {
	rng := newRand(7)
	mask := gradient(4, 4)
	canvas := Canvas{Height: 4, Width: 4, MaxIntensity: 16}

	for _, op := range []Operator{NewRandomBrightnessContrast(1), NewRandomGamma(1)} {
		params, err := op.Sample(rng, canvas)
		if err != nil {
			t.Fatalf("%s Sample failed: %v", op.Name(), err)
		}
		out, err := op.Apply(Target{Role: RoleMask, Data: mask}, params)
		if err != nil {
			t.Fatalf("%s Apply failed: %v", op.Name(), err)
		}
		if !mat.Equal(out.Data, mask) {
			t.Errorf("%s changed a mask target", op.Name())
		}
	}
}

func TestRandomGammaFixedPoints(t *testing.T) {
	op := NewRandomGamma(1)
	params := GammaParams{Gamma: 1.2, Max: 10}
	src := mat.NewDense(1, 4, []float64{0, 10, -10, 5})

	out, err := op.Apply(Target{Role: RoleImage, Data: src}, params)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []float64{0, 10, -10, 10 * math.Pow(0.5, 1.2)}
	for i, w := range want {
		if got := out.Data.At(0, i); math.Abs(got-w) > 1e-9 {
			t.Errorf("index %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestBrightnessContrastRange(t *testing.T) {
	op := NewRandomBrightnessContrast(1)
	rng := newRand(3)
	for i := 0; i < 100; i++ {
		p, _ := op.Sample(rng, Canvas{Height: 1, Width: 1, MaxIntensity: 1})
		bp := p.(BrightnessContrastParams)
		if bp.Alpha < 0.8 || bp.Alpha > 1.2 || bp.Beta < -0.2 || bp.Beta > 0.2 {
			t.Fatalf("Sample out of range: %v", bp)
		}
	}
}

func TestGridCoords(t *testing.T) {
	identity := []float64{1, 1, 1, 1, 1, 1}
	coords := gridCoords(20, 5, identity)
	if coords[0] != 0 {
		t.Errorf("Expected first coordinate 0, got %v", coords[0])
	}
	for i := 1; i < len(coords); i++ {
		if coords[i] < coords[i-1] {
			t.Fatalf("Coordinates not monotonic at %d: %v", i, coords)
		}
	}

	// 13 is not a multiple of 5; the remainder must still map inside the axis
	odd := gridCoords(13, 5, identity)
	if last := odd[len(odd)-1]; last != 12 {
		t.Errorf("Expected last coordinate 12, got %v (%v)", last, odd)
	}
	for i := 1; i < len(odd); i++ {
		if odd[i] < odd[i-1] {
			t.Fatalf("Coordinates not monotonic at %d: %v", i, odd)
		}
	}

	tiny := gridCoords(3, 5, identity)
	for i, c := range tiny {
		if c != float64(i) {
			t.Errorf("Expected identity mapping for narrow axis, got %v", tiny)
			break
		}
	}
}

func TestGridDistortionKeepsRightEdge(t *testing.T) {
	op := &GridDistortion{P: 1, NumSteps: 5}
	row := mat.NewDense(1, 13, nil)
	for x := 0; x < 13; x++ {
		row.Set(0, x, float64(x+1))
	}

	params, err := op.Sample(newRand(3), Canvas{Height: 1, Width: 13, MaxIntensity: 13})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	out, err := op.Apply(Target{Role: RoleMask, Data: row}, params)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := out.Data.At(0, 12); got != 13 {
		t.Errorf("Expected last column 13, got %v", got)
	}
	if got := out.Data.At(0, 0); got != 1 {
		t.Errorf("Expected first column 1, got %v", got)
	}
}

func TestGridDistortionMaskKeepsClasses(t *testing.T) {
	op := NewGridDistortion(1)
	mask := mat.NewDense(32, 32, nil)
	for y := 8; y < 24; y++ {
		for x := 8; x < 24; x++ {
			mask.Set(y, x, 3)
		}
	}
	params, err := op.Sample(newRand(11), Canvas{Height: 32, Width: 32, MaxIntensity: 1})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	out, err := op.Apply(Target{Role: RoleMask, Data: mask}, params)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for v := range classSet(out.Data) {
		if v != 0 && v != 3 {
			t.Errorf("Grid distortion introduced class %v", v)
		}
	}

	if _, err := op.Apply(Target{Role: RoleMask, Data: mat.NewDense(16, 16, nil)}, params); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for a differently sized target, got %v", err)
	}
}

func TestShiftScaleRotateIdentity(t *testing.T) {
	op := NewShiftScaleRotate(1, 0, 0, 0)
	src := gradient(9, 9)
	params, err := op.Sample(newRand(5), Canvas{Height: 9, Width: 9, MaxIntensity: 81})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	out, err := op.Apply(Target{Role: RoleImage, Data: src}, params)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !mat.EqualApprox(out.Data, src, 1e-9) {
		t.Error("Zero-limit shift/scale/rotate should be the identity")
	}
}

func TestShiftScaleRotateQuarterTurn(t *testing.T) {
	op := NewShiftScaleRotate(1, 0.2, 0.5, 30)
	m := affineMatrix(90, 1, 0, 0, 2.5, 2.5)
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}
	params := AffineParams{Angle: 90, Scale: 1, inverse: &inv}

	mask := mat.NewDense(5, 5, nil)
	mask.Set(2, 3, 1)
	out, err := op.Apply(Target{Role: RoleMask, Data: mask}, params)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	fx, fy := params.Forward(3, 2, 5, 5)
	if math.Abs(fx-2) > 1e-9 || math.Abs(fy-2) > 1e-9 {
		t.Fatalf("Expected forward mapping to (2,2), got (%v,%v)", fx, fy)
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			want := 0.0
			if y == 2 && x == 2 {
				want = 1
			}
			if got := out.Data.At(y, x); got != want {
				t.Errorf("(%d,%d): expected %v, got %v", y, x, want, got)
			}
		}
	}
}

func TestComposeFiring(t *testing.T) {
	src := gradient(4, 4)
	targets := []Target{{Role: RoleImage, Data: src}, {Role: RoleMask, Data: src}}

	never := NewCompose(&HorizontalFlip{P: 0}, NewRandomGamma(0))
	res, err := never.Apply(newRand(1), targets)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(res.Applied) != 0 {
		t.Errorf("Expected nothing applied, got %v", res.Applied)
	}

	always := NewCompose(&HorizontalFlip{P: 1}, &PadToSize{Height: 6, Width: 6, P: 1})
	res, err = always.Apply(newRand(1), targets)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(res.Applied) != 2 || res.Applied[0].Operator != "horizontal_flip" || res.Applied[1].Operator != "pad_to_size" {
		t.Errorf("Unexpected applied list %v", res.Applied)
	}
	for i, tg := range res.Targets {
		if h, w := tg.Data.Dims(); h != 6 || w != 6 {
			t.Errorf("target %d: expected 6x6, got %dx%d", i, h, w)
		}
	}
}

func TestComposeSharedOutcome(t *testing.T) {
	chain := NewCompose(
		&HorizontalFlip{P: 0.5},
		NewRandomBrightnessContrast(0.5),
		NewRandomGamma(0.5),
		NewGridDistortion(0.5),
		NewShiftScaleRotate(0.5, 0.2, 0.5, 30),
	)
	src := gradient(16, 16)

	for seed := uint64(0); seed < 20; seed++ {
		targets := []Target{
			{Role: RoleImage, Data: src},
			{Role: RoleMask, Data: src},
			{Role: RoleImage, Data: mat.DenseCopyOf(src)},
			{Role: RoleMask, Data: mat.DenseCopyOf(src)},
		}
		res, err := chain.Apply(newRand(seed), targets)
		if err != nil {
			t.Fatalf("seed %d: Apply failed: %v", seed, err)
		}
		if !mat.Equal(res.Targets[0].Data, res.Targets[2].Data) {
			t.Errorf("seed %d: image targets diverged", seed)
		}
		if !mat.Equal(res.Targets[1].Data, res.Targets[3].Data) {
			t.Errorf("seed %d: mask targets diverged", seed)
		}
	}
}

func TestComposeShapeMismatch(t *testing.T) {
	chain := NewCompose(&HorizontalFlip{P: 1})
	_, err := chain.Apply(newRand(1), []Target{
		{Role: RoleImage, Data: gradient(4, 4)},
		{Role: RoleMask, Data: gradient(4, 5)},
	})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}

	if _, err := chain.Apply(newRand(1), nil); !errors.Is(err, ErrNoTargets) {
		t.Errorf("Expected ErrNoTargets, got %v", err)
	}
}

func TestComposeEmptyCropPropagates(t *testing.T) {
	chain := NewCompose(&Crop{XMin: 50, YMin: 50, XMax: 60, YMax: 60, P: 1})
	_, err := chain.Apply(newRand(1), []Target{{Role: RoleImage, Data: gradient(10, 10)}})
	if !errors.Is(err, ErrEmptyCrop) {
		t.Errorf("Expected ErrEmptyCrop, got %v", err)
	}
}
