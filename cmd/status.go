package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agentic-research/atlas/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each dataset's path, age and freshness without writing anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		entries, err := p.Status()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATASET\tPATH\tMODIFIED\tSTATE\tDETAIL")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Name, e.Path, modified(e), state(e), e.Detail)
		}
		return w.Flush()
	},
}

func modified(e pipeline.StatusEntry) string {
	if !e.Exists {
		return "-"
	}
	return humanize.Time(e.ModTime)
}

func state(e pipeline.StatusEntry) string {
	switch {
	case e.Problem != "":
		return e.Problem
	case !e.Derived:
		return "ok"
	case e.Fresh:
		return "fresh"
	default:
		return "stale"
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
