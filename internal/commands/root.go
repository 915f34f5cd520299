package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ledger/internal/app"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	configPath string
	logFormat  string
	verbose    bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Invoice intake, credibility scoring and sealed ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (overrides LEDGER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newProcessCommand(opts),
		newBatchCommand(opts),
		newExportCommand(opts),
		newDBHealthCommand(opts),
		newOCRCommand(opts),
		newWatchCommand(opts),
	)
	return rootCmd
}

// logger writes to stderr so stdout stays machine readable.
func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if o.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func (o *rootOptions) config() (*common.Config, error) {
	if o.configPath != "" {
		if err := os.Setenv("LEDGER_CONFIG", o.configPath); err != nil {
			return nil, err
		}
	}
	return common.LoadConfig()
}

// open loads the configuration and wires the application for one command run.
func (o *rootOptions) open(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, o.logger(cmd.ErrOrStderr()))
}
