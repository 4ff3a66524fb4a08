package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/iadas/internal/config"
	"github.com/roach88/iadas/internal/ontology"
	"github.com/roach88/iadas/internal/querybuild"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Logger is set up before any command runs.
	Logger *slog.Logger
	level  slog.LevelVar
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the iadas CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "iadas",
		Short: "IA-DAS query pipeline",
		Long: `Build SPARQL queries and updates for the IA-DAS sport psychology
knowledge base, decode their results and serve them over HTTP.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.setupLogger(cmd.ErrOrStderr())
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (YAML)")

	// Query building
	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewFetchQueryCommand(opts))

	// Result decoding
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewHierarchyCommand(opts))

	// Endpoint and service
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setupLogger installs a text logger on w, at Debug when verbose and Info
// otherwise, as both opts.Logger and the slog default.
func (opts *RootOptions) setupLogger(w io.Writer) {
	if opts.Verbose {
		opts.level.Set(slog.LevelDebug)
	} else {
		opts.level.Set(slog.LevelInfo)
	}
	opts.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &opts.level}))
	slog.SetDefault(opts.Logger)
}

func (opts *RootOptions) logger() *slog.Logger {
	if opts.Logger == nil {
		return slog.Default()
	}
	return opts.Logger
}

// loadConfig reads the configured file and environment. Unless --verbose
// is set, the log level follows log.level.
func (opts *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if !opts.Verbose {
		level, err := config.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		opts.level.Set(level)
	}
	return cfg, nil
}

func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func newBuilder(limit int) (*querybuild.Builder, error) {
	onto, err := ontology.Load()
	if err != nil {
		return nil, err
	}
	return querybuild.New(onto, querybuild.WithDefaultLimit(limit)), nil
}
