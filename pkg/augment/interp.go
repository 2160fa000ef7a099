package augment

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Interpolation selects how off-grid source positions are resolved.
type Interpolation int

const (
	Linear Interpolation = iota
	Nearest
)

// interpolationFor returns the resampling policy for a target role.
// Masks must keep integer class indices.
func interpolationFor(r Role) Interpolation {
	if r == RoleMask {
		return Nearest
	}
	return Linear
}

// sample reads src at the fractional position (x, y). Positions outside the
// matrix read as fill.
func sample(src *mat.Dense, x, y float64, interp Interpolation, fill float64) float64 {
	rows, cols := src.Dims()
	if interp == Nearest {
		ix := int(math.Round(x))
		iy := int(math.Round(y))
		if ix < 0 || iy < 0 || ix >= cols || iy >= rows {
			return fill
		}
		return src.At(iy, ix)
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	at := func(r, c int) float64 {
		if c < 0 || r < 0 || c >= cols || r >= rows {
			return fill
		}
		return src.At(r, c)
	}

	top := at(y0, x0)*(1-fx) + at(y0, x0+1)*fx
	bottom := at(y0+1, x0)*(1-fx) + at(y0+1, x0+1)*fx
	return top*(1-fy) + bottom*fy
}

// remap builds an output of the given size where each pixel (x, y) reads src
// at fn(x, y).
func remap(src *mat.Dense, rows, cols int, interp Interpolation, fill float64, fn func(x, y int) (float64, float64)) *mat.Dense {
	dst := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			sx, sy := fn(x, y)
			dst.Set(y, x, sample(src, sx, sy, interp, fill))
		}
	}
	return dst
}

// resize scales src to rows x cols using pixel-centre alignment. Borders
// replicate the edge pixels.
func resize(src *mat.Dense, rows, cols int, interp Interpolation) *mat.Dense {
	srcRows, srcCols := src.Dims()
	scaleX := float64(srcCols) / float64(cols)
	scaleY := float64(srcRows) / float64(rows)

	if interp == Nearest {
		return remap(src, rows, cols, Nearest, 0, func(x, y int) (float64, float64) {
			sx := math.Min(math.Floor(float64(x)*scaleX), float64(srcCols-1))
			sy := math.Min(math.Floor(float64(y)*scaleY), float64(srcRows-1))
			return sx, sy
		})
	}

	return remap(src, rows, cols, Linear, 0, func(x, y int) (float64, float64) {
		sx := clamp((float64(x)+0.5)*scaleX-0.5, 0, float64(srcCols-1))
		sy := clamp((float64(y)+0.5)*scaleY-0.5, 0, float64(srcRows-1))
		return sx, sy
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
