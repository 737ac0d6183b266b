package feature

import (
	"math"
)

// ShapeVectorSize is the length of the oriented-gradient descriptor:
// a 64x64 canvas split into 8x8-pixel cells (8x8 cells), grouped into
// 2x2-cell blocks sliding by one cell (7x7 blocks), 9 orientation bins per
// cell: 7*7*2*2*9.
const ShapeVectorSize = 1764

const (
	hogCanvas       = 64
	hogCellSize     = 8
	hogBlockCells   = 2
	hogOrientations = 9
	hogEps          = 1e-5
	hogClip         = 0.2
)

// Shape computes a block-normalized histogram of oriented gradients over the
// image: grayscale conversion, bilinear resize to a fixed 64x64 canvas
// (making the descriptor resolution-independent), centered gradients, 9
// unsigned orientation bins over 8x8-pixel cells, and 2x2-cell blocks with
// L2-Hys normalization.
func Shape(img *Image) ([]float32, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	plane := resizeGray(img.grayscale(), img.W, img.H, hogCanvas, hogCanvas)

	// Centered gradients; border rows/columns have zero gradient.
	n := hogCanvas
	mag := make([]float64, n*n)
	ang := make([]float64, n*n) // degrees in [0, 180)
	for y := 1; y < n-1; y++ {
		for x := 1; x < n-1; x++ {
			gx := plane[y*n+x+1] - plane[y*n+x-1]
			gy := plane[(y+1)*n+x] - plane[(y-1)*n+x]
			i := y*n + x
			mag[i] = math.Hypot(gx, gy)
			a := math.Atan2(gy, gx) * 180 / math.Pi
			a = math.Mod(a+180, 180)
			ang[i] = a
		}
	}

	// Per-cell orientation histograms with linear vote interpolation between
	// the two nearest bins.
	cells := hogCanvas / hogCellSize
	hist := make([]float64, cells*cells*hogOrientations)
	binWidth := 180.0 / hogOrientations
	for y := 0; y < n; y++ {
		cy := y / hogCellSize
		for x := 0; x < n; x++ {
			i := y*n + x
			if mag[i] == 0 {
				continue
			}
			cx := x / hogCellSize

			pos := ang[i]/binWidth - 0.5
			b0 := int(math.Floor(pos))
			frac := pos - float64(b0)
			b0 = ((b0 % hogOrientations) + hogOrientations) % hogOrientations
			b1 := (b0 + 1) % hogOrientations

			base := (cy*cells + cx) * hogOrientations
			hist[base+b0] += mag[i] * (1 - frac)
			hist[base+b1] += mag[i] * frac
		}
	}

	// Sliding 2x2-cell blocks with L2-Hys normalization: L2-normalize,
	// clip at 0.2, renormalize.
	blocks := cells - hogBlockCells + 1
	out := make([]float32, 0, ShapeVectorSize)
	block := make([]float64, hogBlockCells*hogBlockCells*hogOrientations)
	for by := 0; by < blocks; by++ {
		for bx := 0; bx < blocks; bx++ {
			block = block[:0]
			for dy := 0; dy < hogBlockCells; dy++ {
				for dx := 0; dx < hogBlockCells; dx++ {
					base := ((by+dy)*cells + bx + dx) * hogOrientations
					block = append(block, hist[base:base+hogOrientations]...)
				}
			}

			normalizeL2Hys(block)

			for _, v := range block {
				out = append(out, float32(v))
			}
		}
	}

	return out, nil
}

func normalizeL2Hys(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	inv := 1 / math.Sqrt(sum+hogEps*hogEps)
	for i := range v {
		v[i] *= inv
		if v[i] > hogClip {
			v[i] = hogClip
		}
	}

	sum = 0
	for _, x := range v {
		sum += x * x
	}
	inv = 1 / math.Sqrt(sum+hogEps*hogEps)
	for i := range v {
		v[i] *= inv
	}
}
