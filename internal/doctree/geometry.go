package doctree

import "math"

// BBox holds x0, y0, x1, y1 in page coordinates with y growing downwards.
// It is a slice so that malformed detector output survives decoding and can
// be rejected later instead of failing the whole document.
type BBox []float64

// Valid reports whether the box has exactly four coordinates.
func (b BBox) Valid() bool {
	return len(b) == 4
}

// Top returns y0, or 0 for malformed boxes.
func (b BBox) Top() float64 {
	if !b.Valid() {
		return 0
	}
	return b[1]
}

// Bottom returns y1, or 0 for malformed boxes.
func (b BBox) Bottom() float64 {
	if !b.Valid() {
		return 0
	}
	return b[3]
}

// CenterY returns the vertical center.
func (b BBox) CenterY() float64 {
	if !b.Valid() {
		return 0
	}
	return (b[1] + b[3]) / 2
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(x, y float64) bool {
	if !b.Valid() {
		return false
	}
	return x >= math.Min(b[0], b[2]) && x <= math.Max(b[0], b[2]) &&
		y >= math.Min(b[1], b[3]) && y <= math.Max(b[1], b[3])
}

// Scale multiplies x coordinates by sx and y coordinates by sy.
func (b BBox) Scale(sx, sy float64) BBox {
	if !b.Valid() {
		return b
	}
	return BBox{b[0] * sx, b[1] * sy, b[2] * sx, b[3] * sy}
}
