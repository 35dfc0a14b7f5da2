package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Rebuild stale artifacts and publish the organisation, project and overall views",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, log, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(outPath, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		rep, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		for join, n := range rep.Misses {
			if n > 0 {
				log.Debug().Str("join", join).Int("misses", n).Msg("unmatched keys")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
