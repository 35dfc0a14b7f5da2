package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/logging"
	"github.com/agentic-research/atlas/internal/pipeline"
)

var (
	configPath string
	dataPath   string
	outPath    string
	logLevel   string
	logFormat  string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "atlas.yaml", "Path to configuration document")
	pf.StringVarP(&dataPath, "data", "d", "data", "Data root the configured files are relative to")
	pf.StringVarP(&outPath, "out", "o", "site/docs", "Directory the views are published to")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
}

var rootCmd = &cobra.Command{
	Use:           "atlas",
	Short:         "Atlas: fuse programme reports and compile them into interactive maps",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig reads the configuration document. A missing document is
// only an error when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (api.Config, error) {
	cfg, err := api.LoadConfig(configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return api.Default(), nil
	}
	return api.Config{}, err
}

func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, zerolog.Logger, error) {
	log := logging.New(logLevel, logFormat, cmd.ErrOrStderr())
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, log, err
	}
	p := pipeline.New(cfg, osfs.New(dataPath), osfs.New(outPath), log, pipeline.Options{})
	return p, log, nil
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
