// Package cli is the command-line surface of the knowledge pipeline.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-pipeline/internal/bootstrap"
	"github.com/kirillkom/knowledge-pipeline/internal/config"
	"github.com/kirillkom/knowledge-pipeline/internal/observability/logging"
)

const serviceName = "knowledge-pipeline"

type appFactory func(cfg config.Config, logger *slog.Logger) (*bootstrap.App, error)

// cliContext carries the resolved configuration between the persistent
// pre-run hook and the subcommands.
type cliContext struct {
	cfg    config.Config
	newApp appFactory

	rootDir   string
	intakeDir string
	logLevel  string
	taxonomy  string
}

func (c *cliContext) app(logger *slog.Logger) (*bootstrap.App, error) {
	if logger == nil {
		logger = logging.NewConsoleLogger(serviceName, c.cfg.LogLevel)
	}
	return c.newApp(c.cfg, logger)
}

func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, bootstrap.New)
}

func newRootCommand(version string, factory appFactory) *cobra.Command {
	c := &cliContext{newApp: factory}

	root := &cobra.Command{
		Use:   "pipeline",
		Short: "Turn raw intake files into filed knowledge records",
		Long: `pipeline converts files dropped into intake/raw/ (text, PDF, Word,
spreadsheets, audio, video, images) into categorized Markdown knowledge
records with an LLM, validates them and files them under knowledge/.

Examples:
  pipeline run                 # process everything in intake/raw/
  pipeline run --dry-run       # list what would be processed
  pipeline run --type video    # only video files
  pipeline report show latest  # print the last run report
  pipeline records stats`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.cfg = applyOverrides(config.Load(), c, cmd)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.rootDir, "root", "", "project root holding intake/, knowledge/ and logs/ (env PIPELINE_ROOT)")
	flags.StringVar(&c.intakeDir, "input", "", "intake directory containing raw/ (env PIPELINE_INTAKE_DIR)")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	flags.StringVar(&c.taxonomy, "taxonomy", "", "taxonomy YAML file (env PIPELINE_TAXONOMY_FILE)")

	root.AddCommand(
		newRunCommand(c),
		newReportCommand(c),
		newRecordsCommand(c),
		newReconcileCommand(c),
	)
	return root
}

// applyOverrides lets explicit flags win over the environment. A new root
// moves every directory that was not set on its own.
func applyOverrides(cfg config.Config, c *cliContext, cmd *cobra.Command) config.Config {
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.RootDir = c.rootDir
		if os.Getenv("PIPELINE_INTAKE_DIR") == "" {
			cfg.IntakeDir = filepath.Join(c.rootDir, "intake")
		}
		if os.Getenv("PIPELINE_KNOWLEDGE_DIR") == "" {
			cfg.KnowledgeDir = filepath.Join(c.rootDir, "knowledge")
		}
		if os.Getenv("PIPELINE_LOG_DIR") == "" {
			cfg.LogDir = filepath.Join(c.rootDir, "logs", "pipeline")
		}
	}
	if flags.Changed("input") {
		cfg.IntakeDir = c.intakeDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if flags.Changed("taxonomy") {
		cfg.TaxonomyFile = c.taxonomy
	}
	return cfg
}

// Execute runs the root command and prints a failing command's error.
func Execute(version string) error {
	return execute(NewRootCommand(version), os.Stderr)
}

func execute(root *cobra.Command, stderr io.Writer) error {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}
