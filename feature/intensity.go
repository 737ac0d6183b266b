package feature

import (
	"github.com/hupe1980/imagesim/distance"
)

// IntensityVectorSize is the length of the grayscale intensity histogram.
const IntensityVectorSize = 256

// Intensity computes a 1-D histogram of grayscale intensity over 256 bins,
// L2-normalized to unit Euclidean norm. Color input is converted to
// grayscale first.
func Intensity(img *Image) ([]float32, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	hist := make([]float32, IntensityVectorSize)
	for _, v := range img.grayscale() {
		hist[v]++
	}

	distance.NormalizeL2InPlace(hist)

	return hist, nil
}
