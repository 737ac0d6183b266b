package commands

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/imagesim"
	"github.com/hupe1980/imagesim/feature"
)

var (
	similarLimit       int
	similarMaxDistance float64
)

type similarOutput struct {
	Status   string         `yaml:"status"`
	ImageURL string         `yaml:"image_url"`
	Exact    bool           `yaml:"exact"`
	Similar  []similarEntry `yaml:"similar"`
}

type similarEntry struct {
	ID       string  `yaml:"id"`
	URL      string  `yaml:"url"`
	Distance float64 `yaml:"distance"`
}

var similarCmd = &cobra.Command{
	Use:   "similar <id> <field>",
	Short: "Query images similar to a stored image",
	Long: `Query the images most similar to a stored image by one feature field.

Fields: color, shape, texture, intensity.

Results are ordered by ascending distance. If the image is still being
processed the status is "processing" and the result list is empty.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid image id %q: %w", args[0], err)
		}

		kind, err := feature.ParseKind(args[1])
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		opts := []imagesim.QueryOption{imagesim.WithLimit(similarLimit)}
		if cmd.Flags().Changed("max-distance") {
			opts = append(opts, imagesim.WithMaxDistance(similarMaxDistance))
		}

		res, err := a.Service.Similar(cmd.Context(), id, kind, opts...)
		if err != nil {
			return err
		}

		out := similarOutput{
			Status:   string(res.Status),
			ImageURL: res.ImageURL,
			Exact:    res.Exact,
			Similar:  make([]similarEntry, 0, len(res.Similar)),
		}
		for _, n := range res.Similar {
			out.Similar = append(out.Similar, similarEntry{
				ID:       n.ID.String(),
				URL:      n.URL,
				Distance: n.Distance,
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
	similarCmd.Flags().IntVar(&similarLimit, "limit", 10, "maximum number of results")
	similarCmd.Flags().Float64Var(&similarMaxDistance, "max-distance", 0, "drop results farther than this distance")

	rootCmd.AddCommand(similarCmd)
}
