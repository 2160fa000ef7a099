package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"gonum.org/v1/gonum/mat"

	"medaug/internal/models"
)

// adapted is a record whose arrays have been normalised to volumes.
type adapted struct {
	image *models.Volume
	label *models.Volume
}

// adaptRecord converts the record's image and label into volumes and checks
// that their spatial shapes agree.
func adaptRecord(rec models.Record) (adapted, error) {
	if rec.Image == nil {
		return adapted{}, fmt.Errorf("%w: image is missing", ErrMalformedRecord)
	}
	img, err := toVolume(rec.Image)
	if err != nil {
		return adapted{}, fmt.Errorf("%w: image: %v", ErrMalformedRecord, err)
	}
	out := adapted{image: img}
	if rec.Label == nil {
		return out, nil
	}

	lbl, err := toVolume(rec.Label)
	if err != nil {
		return adapted{}, fmt.Errorf("%w: label: %v", ErrMalformedRecord, err)
	}
	ih, iw, is := img.Shape()
	lh, lw, ls := lbl.Shape()
	if ih != lh || iw != lw {
		return adapted{}, fmt.Errorf("%w: label is %dx%d, image is %dx%d", ErrMalformedRecord, lh, lw, ih, iw)
	}
	if is != ls {
		return adapted{}, fmt.Errorf("%w: label has %d slices, image has %d", ErrMalformedRecord, ls, is)
	}
	out.label = lbl
	return out, nil
}

// toVolume converts an array-like value into a validated volume. The result
// never aliases the caller's storage.
func toVolume(v any) (*models.Volume, error) {
	var vol *models.Volume

	switch x := v.(type) {
	case *models.Volume:
		if x == nil {
			return nil, fmt.Errorf("nil volume")
		}
		if err := x.Validate(); err != nil {
			return nil, err
		}
		return x.Clone(), nil
	case models.Volume:
		return toVolume(&x)
	case *mat.Dense:
		if x == nil || x.IsEmpty() {
			return nil, fmt.Errorf("empty matrix")
		}
		vol = &models.Volume{Slices: []*mat.Dense{mat.DenseCopyOf(x)}}
	case []*mat.Dense:
		vol = &models.Volume{Slices: make([]*mat.Dense, len(x)), Stacked: true}
		for i, s := range x {
			if s == nil || s.IsEmpty() {
				return nil, fmt.Errorf("slice %d is empty", i)
			}
			vol.Slices[i] = mat.DenseCopyOf(s)
		}
	case [][]float64:
		m, err := denseFromRows(x)
		if err != nil {
			return nil, err
		}
		vol = &models.Volume{Slices: []*mat.Dense{m}}
	case [][]int:
		m, err := denseFromRows(intRows(x))
		if err != nil {
			return nil, err
		}
		vol = &models.Volume{Slices: []*mat.Dense{m}}
	case [][][]float64:
		return stackFromCube(x)
	case [][][]int:
		cube := make([][][]float64, len(x))
		for y, row := range x {
			cube[y] = intRows(row)
		}
		return stackFromCube(cube)
	case image.Image:
		m, err := denseFromImage(x)
		if err != nil {
			return nil, err
		}
		vol = &models.Volume{Slices: []*mat.Dense{m}}
	case []image.Image:
		vol = &models.Volume{Slices: make([]*mat.Dense, len(x)), Stacked: true}
		for i, img := range x {
			if img == nil {
				return nil, fmt.Errorf("slice %d is nil", i)
			}
			m, err := denseFromImage(img)
			if err != nil {
				return nil, fmt.Errorf("slice %d: %w", i, err)
			}
			vol.Slices[i] = m
		}
	default:
		return nil, fmt.Errorf("unsupported array type %T", v)
	}

	if err := vol.Validate(); err != nil {
		return nil, err
	}
	return vol, nil
}

func intRows(rows [][]int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = float64(v)
		}
	}
	return out
}

// denseFromRows builds an H x W matrix from rectangular rows.
func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty array")
	}
	w := len(rows[0])
	data := make([]float64, 0, len(rows)*w)
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("ragged array: row %d has %d columns, want %d", y, len(row), w)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), w, data), nil
}

// stackFromCube splits an (H, W, S) array into S slices.
func stackFromCube(cube [][][]float64) (*models.Volume, error) {
	if len(cube) == 0 || len(cube[0]) == 0 || len(cube[0][0]) == 0 {
		return nil, fmt.Errorf("empty array")
	}
	h, w, s := len(cube), len(cube[0]), len(cube[0][0])
	vol := models.NewVolume(h, w, s)
	vol.Stacked = true
	for y, row := range cube {
		if len(row) != w {
			return nil, fmt.Errorf("ragged array: row %d has %d columns, want %d", y, len(row), w)
		}
		for x, px := range row {
			if len(px) != s {
				return nil, fmt.Errorf("ragged array: pixel (%d,%d) has %d slices, want %d", y, x, len(px), s)
			}
			for k, v := range px {
				vol.Set(y, x, k, v)
			}
		}
	}
	return vol, nil
}

// denseFromImage reads an image's values. Paletted images yield their
// palette indices, so indexed label maps keep their class indices. 16-bit
// grayscale keeps its full range; everything else is read as 8-bit gray.
func denseFromImage(img image.Image) (*mat.Dense, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	var at func(x, y int) float64
	switch src := img.(type) {
	case *image.Paletted:
		at = func(x, y int) float64 { return float64(src.ColorIndexAt(x, y)) }
	case *image.Gray16:
		at = func(x, y int) float64 { return float64(src.Gray16At(x, y).Y) }
	default:
		at = func(x, y int) float64 { return float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y) }
	}
	m := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m.Set(y-b.Min.Y, x-b.Min.X, at(x, y))
		}
	}
	return m, nil
}
