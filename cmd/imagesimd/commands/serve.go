package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feature extraction pipeline",
	Long: `Run the extraction workers until interrupted.

Workers dequeue jobs, load and decode the stored image, compute all four
feature vectors and write them back in one step. Failed jobs are retried
with exponential backoff; jobs that exhaust their budget are recorded as
dead letters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.Logger.Info("pipeline starting",
			"workers", a.Config.Pipeline.Workers,
			"store", a.Config.Store.Backend,
			"queue", a.Config.Queue.Backend,
		)

		return a.RunPipeline(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
