package commands

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return buf.String(), err
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	cfg := "store:\n  backend: sqlite\n  path: " + filepath.Join(dir, "images.db") + "\n" +
		"blobs:\n  root: " + filepath.Join(dir, "blobs") + "\n"

	path := filepath.Join(dir, "imagesim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	return path
}

func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, "red.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path
}

func TestIngestThenSimilar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	imgPath := writeTestPNG(t, dir)

	out, err := execute(t, "-c", cfgPath, "ingest", imgPath)
	require.NoError(t, err)

	id, err := uuid.Parse(strings.TrimSpace(out))
	require.NoError(t, err)

	// The image blob landed under its sharded path.
	s := id.String()
	_, err = os.Stat(filepath.Join(dir, "blobs", "uploaded_images", s[0:2], s[2:4], s+".png"))
	require.NoError(t, err)

	// No serve process has run, so the image is still unprocessed.
	out, err = execute(t, "-c", cfgPath, "similar", id.String(), "color")
	require.NoError(t, err)
	assert.Contains(t, out, "status: processing")

	// Unknown field name is rejected.
	_, err = execute(t, "-c", cfgPath, "similar", id.String(), "mood")
	assert.Error(t, err)

	// Unknown id is reported as an error.
	_, err = execute(t, "-c", cfgPath, "similar", uuid.NewString(), "color")
	assert.Error(t, err)
}

func TestDeadlettersEmpty(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	out, err := execute(t, "-c", cfgPath, "deadletters")
	require.NoError(t, err)
	assert.Contains(t, out, "no dead letters")
}

func TestIngestMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	_, err := execute(t, "-c", cfgPath, "ingest", filepath.Join(dir, "nope.png"))
	assert.Error(t, err)
}
