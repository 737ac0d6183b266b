package feature

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Kind selects one of the named feature vectors of an image record.
type Kind int

const (
	// KindColor is the 3-D joint RGB histogram (512 entries, unit L2 norm).
	KindColor Kind = iota
	// KindShape is the histogram of oriented gradients over a 64x64 canvas
	// (1764 entries).
	KindShape
	// KindTexture is the gray-level co-occurrence descriptor set (48 entries).
	KindTexture
	// KindIntensity is the 256-bin grayscale histogram (unit L2 norm).
	KindIntensity

	numKinds
)

// kindSpec is the fixed per-kind metadata table. Selection always goes
// through this table rather than reflection, so the set of vector fields is
// closed at compile time.
var kindSpecs = [numKinds]struct {
	name    string
	length  int
	extract func(*Image) ([]float32, error)
}{
	KindColor:     {name: "color", length: ColorVectorSize, extract: Color},
	KindShape:     {name: "shape", length: ShapeVectorSize, extract: Shape},
	KindTexture:   {name: "texture", length: TextureVectorSize, extract: Texture},
	KindIntensity: {name: "intensity", length: IntensityVectorSize, extract: Intensity},
}

// Kinds returns all feature kinds in their canonical order.
func Kinds() []Kind {
	return []Kind{KindColor, KindShape, KindTexture, KindIntensity}
}

// Valid reports whether k names a known feature kind.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

// Length returns the fixed output vector length for the kind.
func (k Kind) Length() int {
	if !k.Valid() {
		return 0
	}
	return kindSpecs[k].length
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
	return kindSpecs[k].name
}

// ParseKind maps the caller-facing field-selector name to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if kindSpecs[k].name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown feature kind %q", s)
}

// Extract runs the extractor for the given kind.
func Extract(k Kind, img *Image) ([]float32, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown feature kind %d", int(k))
	}
	return kindSpecs[k].extract(img)
}

// ExtractAll computes every feature vector for the image. The extractors are
// independent and run concurrently; if any fails, the first error is
// returned and no partial result is produced.
func ExtractAll(ctx context.Context, img *Image) (map[Kind][]float32, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, numKinds)

	g, _ := errgroup.WithContext(ctx)
	for _, k := range Kinds() {
		k := k
		g.Go(func() error {
			v, err := Extract(k, img)
			if err != nil {
				return err
			}
			vectors[k] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[Kind][]float32, numKinds)
	for _, k := range Kinds() {
		out[k] = vectors[k]
	}

	return out, nil
}
