package app

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/hupe1980/imagesim/blobstore"
	"github.com/hupe1980/imagesim/feature"
	"github.com/hupe1980/imagesim/scheduler"
	"github.com/hupe1980/imagesim/store"
)

// Compile time check to ensure BlobPixelSource satisfies the
// scheduler.PixelSource interface.
var _ scheduler.PixelSource = (*BlobPixelSource)(nil)

// BlobPixelSource loads a record's image bytes from a blob store and decodes
// them into raw pixels.
type BlobPixelSource struct {
	blobs blobstore.Store
}

// NewBlobPixelSource creates a pixel source reading from blobs.
func NewBlobPixelSource(blobs blobstore.Store) *BlobPixelSource {
	return &BlobPixelSource{blobs: blobs}
}

// Load opens the blob at rec.Path and decodes it.
func (p *BlobPixelSource) Load(ctx context.Context, rec store.Record) (*feature.Image, error) {
	rc, err := p.blobs.Open(ctx, rec.Path)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", rec.Path, err)
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, feature.NewExtractionError("undecodable image", err)
	}

	return toPixels(img), nil
}

// toPixels flattens a decoded image into interleaved 8-bit BGR rows.
func toPixels(img image.Image) *feature.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	out := &feature.Image{
		W:        w,
		H:        h,
		Channels: 3,
		Pix:      make([]uint8, w*h*3),
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out.Pix[i] = uint8(bl >> 8)
			out.Pix[i+1] = uint8(g >> 8)
			out.Pix[i+2] = uint8(r >> 8)
			i += 3
		}
	}

	return out
}
