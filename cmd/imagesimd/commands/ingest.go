package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Store an image file and queue it for extraction",
	Long: `Store an image file in the blob store, create its record and queue a
feature extraction job. Prints the new image id.

The command returns before extraction runs; similarity queries for the id
report "processing" until a serve process has computed the vectors.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		ext := strings.ToLower(filepath.Ext(args[0]))
		if ext == "" {
			return fmt.Errorf("cannot determine image type of %s: no file extension", args[0])
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		id := uuid.New()
		name, err := a.Blobs.Save(ctx, id, ext, f)
		if err != nil {
			return fmt.Errorf("store image: %w", err)
		}

		if err := a.Service.IngestWithID(ctx, id, name); err != nil {
			_ = a.Blobs.Delete(ctx, name)
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
