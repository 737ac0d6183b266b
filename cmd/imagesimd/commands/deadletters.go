package commands

import (
	"fmt"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

type deadLetterEntry struct {
	ImageID  string    `yaml:"image_id"`
	Attempts int       `yaml:"attempts"`
	Reason   string    `yaml:"reason"`
	FailedAt time.Time `yaml:"failed_at"`
}

var deadlettersCmd = &cobra.Command{
	Use:   "deadletters",
	Short: "List jobs that exhausted their retry budget",
	Long: `List extraction jobs that failed terminally, oldest first.

A dead letter records the image id, the number of attempts made and the
final error. The image record itself stays in the store without vectors.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		letters, err := a.DeadLetters.List(cmd.Context())
		if err != nil {
			return err
		}

		if len(letters) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no dead letters")
			return nil
		}

		out := make([]deadLetterEntry, 0, len(letters))
		for _, dl := range letters {
			out = append(out, deadLetterEntry{
				ImageID:  dl.Job.ImageID.String(),
				Attempts: dl.Job.Attempt + 1,
				Reason:   dl.Reason,
				FailedAt: dl.FailedAt,
			})
		}

		data, err := yaml.Marshal(out)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deadlettersCmd)
}
