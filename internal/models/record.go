package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// BoundingBox is a rectangular region of interest in image pixel coordinates.
type BoundingBox struct {
	MinX int `yaml:"min_x" json:"min_x"`
	MinY int `yaml:"min_y" json:"min_y"`
	MaxX int `yaml:"max_x" json:"max_x"`
	MaxY int `yaml:"max_y" json:"max_y"`
}

// Expand grows the box outward by margin pixels on every side.
// The result is not clamped to any image bounds.
func (b BoundingBox) Expand(margin int) BoundingBox {
	return BoundingBox{
		MinX: b.MinX - margin,
		MinY: b.MinY - margin,
		MaxX: b.MaxX + margin,
		MaxY: b.MaxY + margin,
	}
}

// Valid reports whether min <= max on both axes.
func (b BoundingBox) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Record is one training or evaluation sample.
//
// Image and Label may hold any array-like value understood by the record
// adapter in pkg/pipeline. After a transform they always hold *Volume.
type Record struct {
	// Image holds intensities with spatial shape (H, W) or (H, W, S)
	Image any

	// Label holds integer class indices with the image's spatial shape, or nil
	Label any

	// ROI is the optional region of interest used for pre-cropping
	ROI *BoundingBox

	// Meta carries caller fields that are passed through untouched
	Meta map[string]any
}

// Volume is a stack of 2D slices sharing one spatial shape.
// Each slice is a Rows=H, Cols=W matrix.
type Volume struct {
	// Slices holds the per-slice data in slice-axis order
	Slices []*mat.Dense

	// Stacked is true when the source carried an explicit trailing slice axis
	Stacked bool
}

// NewVolume allocates a zero-filled volume of the given shape.
func NewVolume(height, width, depth int) *Volume {
	v := &Volume{Slices: make([]*mat.Dense, depth), Stacked: depth > 1}
	for i := range v.Slices {
		v.Slices[i] = mat.NewDense(height, width, nil)
	}
	return v
}

// Shape returns height, width and the number of slices.
func (v *Volume) Shape() (height, width, depth int) {
	if v == nil || len(v.Slices) == 0 {
		return 0, 0, 0
	}
	height, width = v.Slices[0].Dims()
	return height, width, len(v.Slices)
}

// Depth returns the number of slices.
func (v *Volume) Depth() int {
	if v == nil {
		return 0
	}
	return len(v.Slices)
}

// Volumetric reports whether the volume holds at least two slices.
func (v *Volume) Volumetric() bool {
	return v != nil && len(v.Slices) >= 2
}

// At returns the value at row y, column x of slice s.
func (v *Volume) At(y, x, s int) float64 {
	return v.Slices[s].At(y, x)
}

// Set stores a value at row y, column x of slice s.
func (v *Volume) Set(y, x, s int, val float64) {
	v.Slices[s].Set(y, x, val)
}

// Validate checks that every slice shares the first slice's shape.
func (v *Volume) Validate() error {
	if v == nil || len(v.Slices) == 0 {
		return fmt.Errorf("volume has no slices")
	}
	h, w := v.Slices[0].Dims()
	for i, s := range v.Slices {
		if s == nil {
			return fmt.Errorf("slice %d is nil", i)
		}
		sh, sw := s.Dims()
		if sh != h || sw != w {
			return fmt.Errorf("slice %d has shape %dx%d, want %dx%d", i, sh, sw, h, w)
		}
	}
	return nil
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := &Volume{Slices: make([]*mat.Dense, len(v.Slices)), Stacked: v.Stacked}
	for i, s := range v.Slices {
		out.Slices[i] = mat.DenseCopyOf(s)
	}
	return out
}
