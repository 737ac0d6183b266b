// Package commands implements the imagesimd CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/imagesim/cmd/imagesimd/internal/app"
	"github.com/hupe1980/imagesim/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "imagesimd",
	Short: "Image similarity daemon and tools",
	Long: `imagesimd stores images, extracts color, shape, texture and intensity
feature vectors in a background pipeline, and answers nearest-neighbor
similarity queries over them.

Examples:
  # Run the extraction pipeline with a config file
  imagesimd -c imagesim.yaml serve

  # Store an image and queue it for extraction
  imagesimd -c imagesim.yaml ingest ./cat.png

  # Query the ten most similar images by color
  imagesimd -c imagesim.yaml similar 4f5e6d7c-... color

  # Inspect jobs that exhausted their retry budget
  imagesimd -c imagesim.yaml deadletters`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
}

// openApp loads the configuration and wires the configured backends.
func openApp() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.Open(cfg)
}
