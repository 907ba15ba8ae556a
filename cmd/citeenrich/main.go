// Package main is the citeenrich command-line tool. It runs enrichment
// batches from JSON files against the same pipeline the HTTP service uses.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/citation-enrichment-service/internal/config"
	"github.com/helixir/citation-enrichment-service/internal/observability"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	envFile    string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "citeenrich",
		Short: "Enrich paper lists with citation metrics",
		Long: `citeenrich looks up citation counts for arXiv papers. Each paper is
served from the local cache when possible, otherwise from Semantic Scholar
with retries, and finally from OpenAlex by title.

Configuration is read from config.yaml and CITEENRICH_* environment
variables. A .env file in the working directory is loaded first when present.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./config.yaml, ./config/config.yaml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(c.newEnrichCmd(), c.newCacheCmd(), c.newStatsCmd())
	return root
}

// setup loads the environment, configuration and logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}

	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := cfg.Logging.Level
	if c.logLevel != "" {
		level = c.logLevel
	}
	c.logger = observability.NewLogger(observability.LoggingConfig{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.TimeOnly,
	}).With().Str("component", "cli").Str("command", cmd.Name()).Logger()
	return nil
}
