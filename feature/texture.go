package feature

import (
	"math"
)

// TextureVectorSize is the length of the co-occurrence texture descriptor:
// 2 offset distances x 4 angles x 6 statistics per matrix.
const TextureVectorSize = 48

const (
	glcmLevels   = 16
	glcmLevelDiv = 256 / glcmLevels
)

var (
	glcmDistances = []int{1, 2}

	// Row/column deltas for the four co-occurrence angles (0, 45, 90, 135
	// degrees) at unit distance. Sign is immaterial for symmetric matrices.
	glcmAngles = [][2]int{
		{0, 1},   // 0 deg
		{-1, 1},  // 45 deg
		{-1, 0},  // 90 deg
		{-1, -1}, // 135 deg
	}
)

// Texture computes gray-level co-occurrence statistics: intensities are
// quantized to 16 levels, symmetric normalized co-occurrence matrices are
// built at distances {1, 2} and angles {0, 45, 90, 135} degrees, and six
// statistics (contrast, dissimilarity, homogeneity, energy, correlation,
// angular second moment) are extracted per matrix and concatenated.
func Texture(img *Image) ([]float32, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	quant := make([]uint8, img.W*img.H)
	for i, v := range img.grayscale() {
		quant[i] = v / glcmLevelDiv
	}

	out := make([]float32, 0, TextureVectorSize)
	for _, d := range glcmDistances {
		for _, a := range glcmAngles {
			m := coOccurrence(quant, img.W, img.H, a[0]*d, a[1]*d)
			out = append(out, glcmStats(m)...)
		}
	}

	return out, nil
}

// coOccurrence tabulates how often pairs of quantized levels occur at the
// given row/column offset, symmetrized and normalized to sum to 1. The
// matrix is all zeros when the image is too small for the offset.
func coOccurrence(quant []uint8, w, h, dr, dc int) []float64 {
	m := make([]float64, glcmLevels*glcmLevels)

	var total float64
	for y := 0; y < h; y++ {
		ny := y + dr
		if ny < 0 || ny >= h {
			continue
		}
		for x := 0; x < w; x++ {
			nx := x + dc
			if nx < 0 || nx >= w {
				continue
			}
			i, j := quant[y*w+x], quant[ny*w+nx]
			m[int(i)*glcmLevels+int(j)]++
			m[int(j)*glcmLevels+int(i)]++
			total += 2
		}
	}

	if total > 0 {
		for i := range m {
			m[i] /= total
		}
	}

	return m
}

// glcmStats extracts the six standard descriptors from a normalized
// symmetric co-occurrence matrix, in the order contrast, dissimilarity,
// homogeneity, energy, correlation, ASM.
func glcmStats(m []float64) []float32 {
	var contrast, dissimilarity, homogeneity, asm float64
	var meanI, meanJ float64

	for i := 0; i < glcmLevels; i++ {
		for j := 0; j < glcmLevels; j++ {
			p := m[i*glcmLevels+j]
			if p == 0 {
				continue
			}
			d := float64(i - j)
			contrast += p * d * d
			dissimilarity += p * math.Abs(d)
			homogeneity += p / (1 + d*d)
			asm += p * p
			meanI += p * float64(i)
			meanJ += p * float64(j)
		}
	}

	var varI, varJ, cov float64
	for i := 0; i < glcmLevels; i++ {
		for j := 0; j < glcmLevels; j++ {
			p := m[i*glcmLevels+j]
			if p == 0 {
				continue
			}
			di, dj := float64(i)-meanI, float64(j)-meanJ
			varI += p * di * di
			varJ += p * dj * dj
			cov += p * di * dj
		}
	}

	// A constant image concentrates all mass on the diagonal; its variance
	// is zero and correlation degenerates to 1.
	correlation := 1.0
	if varI > 0 && varJ > 0 {
		correlation = cov / math.Sqrt(varI*varJ)
	}

	// An empty matrix (offset larger than the image) has no defined
	// correlation; report zero rather than the degenerate 1.
	if asm == 0 {
		correlation = 0
	}

	return []float32{
		float32(contrast),
		float32(dissimilarity),
		float32(homogeneity),
		float32(math.Sqrt(asm)),
		float32(correlation),
		float32(asm),
	}
}
