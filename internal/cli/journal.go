package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/iadas/internal/store"
)

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	var opts store.ListOptions

	cmd := &cobra.Command{
		Use:   "journal [entry-id]",
		Short: "List journalled updates",
		Long: `List the updates recorded in the journal, oldest first, with their
outcome. Use --analysis to show the history of one analysis.

Given an entry id, that entry is shown with its full SPARQL text.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
			}
			journal, err := store.Open(cfg.Journal.Path)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeJournal, "opening journal", err)
			}
			defer journal.Close()

			if len(args) == 1 {
				return showEntry(cmd, formatter, journal, args[0])
			}

			entries, err := journal.List(cmd.Context(), opts)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeJournal, "listing journal", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(entries)
			}

			rows := [][]string{{"id", "kind", "analysis", "status", "created", "error"}}
			for _, e := range entries {
				rows = append(rows, []string{
					e.ID, string(e.Kind), e.AnalysisID, string(e.Status),
					e.CreatedAt.UTC().Format(time.RFC3339), e.Error,
				})
			}
			formatter.Table(rows)
			fmt.Fprintf(formatter.GetErrWriter(), "%d entries\n", len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.AnalysisID, "analysis", "", "only entries of this analysis")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries (0 for all)")
	return cmd
}

func showEntry(cmd *cobra.Command, formatter *OutputFormatter, journal *store.Store, id string) error {
	e, err := journal.Get(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no journal entry %s", id), err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "reading journal", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(e)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s %s %s (%s, %s)\n", e.ID, e.Kind, e.AnalysisID, e.Status, e.CreatedAt.UTC().Format(time.RFC3339))
	if e.Error != "" {
		fmt.Fprintf(w, "error: %s\n", e.Error)
	}
	fmt.Fprintf(w, "hash: %s\n\n%s", e.QueryHash, e.Query)
	return nil
}
