// Package visualization renders augmented volumes as image previews so a
// transform's output can be inspected by eye.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"medaug/internal/models"
)

// overlayAlpha is the opacity of label colours in overlays.
const overlayAlpha = 0x80

// palette colours label classes 1..n; class 0 stays transparent.
var palette = []color.RGBA{
	{R: 0xe6, G: 0x19, B: 0x4b, A: 0xff},
	{R: 0x3c, G: 0xb4, B: 0x4b, A: 0xff},
	{R: 0x43, G: 0x63, B: 0xd8, A: 0xff},
	{R: 0xff, G: 0xe1, B: 0x19, A: 0xff},
	{R: 0xf5, G: 0x82, B: 0x31, A: 0xff},
	{R: 0x91, G: 0x1e, B: 0xb4, A: 0xff},
}

// Viewer renders slices of an image volume and its optional label volume.
type Viewer struct {
	image *models.Volume
	label *models.Volume

	// intensity window used for every slice so brightness is comparable
	lo, hi float64
}

// SliceStats summarises one image slice.
type SliceStats struct {
	Min, Max  float64
	Mean, Std float64

	// LabelFraction is the share of non-background label pixels
	LabelFraction float64
}

// NewViewer creates a viewer. label may be nil.
func NewViewer(img, label *models.Volume) (*Viewer, error) {
	if img == nil || img.Depth() == 0 {
		return nil, fmt.Errorf("image volume is empty")
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if label != nil {
		h, w, d := img.Shape()
		lh, lw, ld := label.Shape()
		if h != lh || w != lw || d != ld {
			return nil, fmt.Errorf("label shape %dx%dx%d does not match image %dx%dx%d", lh, lw, ld, h, w, d)
		}
	}

	v := &Viewer{image: img, label: label, lo: math.Inf(1), hi: math.Inf(-1)}
	for _, s := range img.Slices {
		raw := values(s)
		v.lo = math.Min(v.lo, floats.Min(raw))
		v.hi = math.Max(v.hi, floats.Max(raw))
	}
	return v, nil
}

// Depth returns the number of slices.
func (v *Viewer) Depth() int {
	return v.image.Depth()
}

// ExtractSlice renders an image slice as 16-bit gray, windowed to the
// volume's intensity range.
func (v *Viewer) ExtractSlice(position int) (*image.Gray16, error) {
	if position < 0 || position >= v.Depth() {
		return nil, fmt.Errorf("position %d outside [0, %d)", position, v.Depth())
	}

	s := v.image.Slices[position]
	h, w := s.Dims()
	img := image.NewGray16(image.Rect(0, 0, w, h))
	span := v.hi - v.lo
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var value uint16
			if span > 0 {
				value = uint16(math.Max(0, math.Min(65535, (s.At(y, x)-v.lo)/span*65535)))
			}
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// ExtractOverlay composites the label slice in colour over the image slice.
// Without a label it returns the gray slice as RGBA.
func (v *Viewer) ExtractOverlay(position int) (*image.RGBA, error) {
	gray, err := v.ExtractSlice(position)
	if err != nil {
		return nil, err
	}

	b := gray.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, gray, image.Point{}, draw.Src)
	if v.label == nil {
		return out, nil
	}

	mask := image.NewRGBA(b)
	l := v.label.Slices[position]
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			class := int(math.Round(l.At(y, x)))
			if class <= 0 {
				continue
			}
			mask.SetRGBA(x, y, palette[(class-1)%len(palette)])
		}
	}
	draw.DrawMask(out, b, mask, image.Point{}, image.NewUniform(color.Alpha{A: overlayAlpha}), image.Point{}, draw.Over)
	return out, nil
}

// Stats computes intensity statistics of one slice.
func (v *Viewer) Stats(position int) (SliceStats, error) {
	if position < 0 || position >= v.Depth() {
		return SliceStats{}, fmt.Errorf("position %d outside [0, %d)", position, v.Depth())
	}

	raw := values(v.image.Slices[position])
	mean, std := stat.MeanStdDev(raw, nil)
	st := SliceStats{
		Min:  floats.Min(raw),
		Max:  floats.Max(raw),
		Mean: mean,
		Std:  std,
	}
	if len(raw) == 1 {
		st.Std = 0
	}

	if v.label != nil {
		var fg int
		for _, c := range values(v.label.Slices[position]) {
			if c != 0 {
				fg++
			}
		}
		st.LabelFraction = float64(fg) / float64(len(raw))
	}
	return st, nil
}

// values returns the matrix elements in row-major order.
func values(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	return mat.DenseCopyOf(m).RawMatrix().Data
}

// SaveSlice saves an image as PNG
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence writes every slice as <prefix>_<n>.png and, when
// overlays is set, every overlay as <prefix>_<n>_overlay.png.
func (v *Viewer) SaveSliceSequence(outputDir, prefix string, overlays bool) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < v.Depth(); pos++ {
		img, err := v.ExtractSlice(pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%03d.png", prefix, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}

		if !overlays {
			continue
		}
		ov, err := v.ExtractOverlay(pos)
		if err != nil {
			return err
		}
		filename = filepath.Join(outputDir, fmt.Sprintf("%s_%03d_overlay.png", prefix, pos))
		if err := v.SaveSlice(ov, filename); err != nil {
			return err
		}
	}

	return nil
}
