package feature

import (
	"github.com/hupe1980/imagesim/distance"
)

// ColorVectorSize is the length of the color histogram vector:
// 8 bins per RGB channel, 8*8*8 joint bins.
const ColorVectorSize = 512

const colorBinShift = 5 // 256 values / 8 bins = 32 per bin

// Color computes the 3-D joint histogram of the RGB channels with 8 bins per
// channel, flattened red-major and L2-normalized to unit Euclidean norm.
//
// All entries are non-negative and the sum of squares is 1 for any valid
// input. Grayscale input is treated as R=G=B.
func Color(img *Image) ([]float32, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	hist := make([]float32, ColorVectorSize)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			b, g, r := img.bgr(x, y)
			idx := int(r>>colorBinShift)<<6 | int(g>>colorBinShift)<<3 | int(b>>colorBinShift)
			hist[idx]++
		}
	}

	// A valid image has at least one pixel, so the norm is never zero.
	distance.NormalizeL2InPlace(hist)

	return hist, nil
}
