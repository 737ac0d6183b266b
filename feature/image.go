package feature

import (
	"fmt"
)

// ExtractionError indicates that an image could not be processed into a
// feature vector: the pixel grid is empty, has zero width/height, or does
// not match the expected channel layout.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ExtractionError struct {
	Reason string
	cause  error
}

func (e *ExtractionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.cause }

// NewExtractionError creates an ExtractionError with an optional cause.
// It is exported so that pixel-source collaborators can surface decode
// failures in the form the job scheduler treats as retryable.
func NewExtractionError(reason string, cause error) *ExtractionError {
	return &ExtractionError{Reason: reason, cause: cause}
}

// Image is a decoded pixel grid in row-major order with 8-bit channel depth.
//
// Channels is 1 for grayscale or 3 for interleaved BGR (the layout produced
// by common decoders). Pix holds H rows of W pixels, each pixel Channels
// bytes, so len(Pix) == W*H*Channels.
type Image struct {
	W, H     int
	Channels int
	Pix      []uint8
}

// Validate checks the pixel grid invariants. It returns *ExtractionError on
// violation so that callers can treat malformed input uniformly.
func (m *Image) Validate() error {
	switch {
	case m == nil:
		return NewExtractionError("nil image", nil)
	case m.W <= 0 || m.H <= 0:
		return NewExtractionError(fmt.Sprintf("invalid dimensions %dx%d", m.W, m.H), nil)
	case m.Channels != 1 && m.Channels != 3:
		return NewExtractionError(fmt.Sprintf("unsupported channel count %d", m.Channels), nil)
	case len(m.Pix) != m.W*m.H*m.Channels:
		return NewExtractionError(fmt.Sprintf("pixel buffer length %d does not match %dx%dx%d",
			len(m.Pix), m.W, m.H, m.Channels), nil)
	}
	return nil
}

// bgr returns the blue, green and red components of the pixel at (x, y).
// Grayscale images replicate the single channel.
func (m *Image) bgr(x, y int) (b, g, r uint8) {
	if m.Channels == 1 {
		v := m.Pix[y*m.W+x]
		return v, v, v
	}
	i := (y*m.W + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// grayscale converts the image to a single-channel intensity plane using the
// ITU-R BT.601 luma weights (the conversion used by cv2.COLOR_BGR2GRAY):
// Y = 0.299 R + 0.587 G + 0.114 B, rounded to the nearest integer.
func (m *Image) grayscale() []uint8 {
	out := make([]uint8, m.W*m.H)
	if m.Channels == 1 {
		copy(out, m.Pix)
		return out
	}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			b, g, r := m.bgr(x, y)
			v := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			out[y*m.W+x] = uint8(v + 0.5)
		}
	}
	return out
}

// resizeGray resizes a single-channel plane to tw x th using bilinear
// interpolation with half-pixel center alignment. The mapping is fully
// deterministic, which keeps downstream descriptors reproducible across
// input resolutions.
func resizeGray(src []uint8, w, h, tw, th int) []float64 {
	out := make([]float64, tw*th)
	sx := float64(w) / float64(tw)
	sy := float64(h) / float64(th)

	for ty := 0; ty < th; ty++ {
		fy := (float64(ty)+0.5)*sy - 0.5
		y0 := int(fy)
		if fy < 0 {
			fy, y0 = 0, 0
		}
		y1 := y0 + 1
		if y1 > h-1 {
			y1 = h - 1
		}
		wy := fy - float64(y0)

		for tx := 0; tx < tw; tx++ {
			fx := (float64(tx)+0.5)*sx - 0.5
			x0 := int(fx)
			if fx < 0 {
				fx, x0 = 0, 0
			}
			x1 := x0 + 1
			if x1 > w-1 {
				x1 = w - 1
			}
			wx := fx - float64(x0)

			top := float64(src[y0*w+x0])*(1-wx) + float64(src[y0*w+x1])*wx
			bot := float64(src[y1*w+x0])*(1-wx) + float64(src[y1*w+x1])*wx
			out[ty*tw+tx] = top*(1-wy) + bot*wy
		}
	}

	return out
}
