package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/iadas/internal/analysis"
	"github.com/roach88/iadas/internal/results"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Filters  FilterFlags
	Analyses []string
	Raw      bool
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a search against the SPARQL endpoint",
		Long: `Build the analysis search query from the filter flags, run it against
the configured endpoint and print the decoded rows.

With --analysis the records of the given analyses are fetched instead and
their detail panels printed. Analyses that cannot be fetched are reported
in place; the others are still shown.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, opts)
		},
	}

	opts.Filters.register(cmd)
	cmd.Flags().StringSliceVar(&opts.Analyses, "analysis", nil, "fetch these analysis records (repeatable)")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print the endpoint's JSON unchanged")

	return cmd
}

func runExec(cmd *cobra.Command, opts *ExecOptions) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
	}
	svc, err := WireService(cfg, opts.logger(), false)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "wiring service", err)
	}
	defer svc.Close()

	if len(opts.Analyses) > 0 {
		return outputRecords(formatter, svc.Cache.GetMany(cmd.Context(), opts.Analyses))
	}

	f, err := opts.Filters.Filter(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "reading filter", err)
	}
	text, err := svc.Builder.Select(f)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "building select", err)
	}

	formatter.VerboseLog("Querying %v", svc.Client.URLs())
	data, err := svc.Client.Query(cmd.Context(), text)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEndpoint, "running query", err)
	}
	if opts.Raw {
		_, err := formatter.Writer.Write(data)
		return err
	}

	res, err := results.Parse(data)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeBadResults, "decoding results", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(ParseOutput{Variables: res.Variables, Rows: res.DisplayRows(), ColumnTypes: res.ColumnTypes()})
	}
	formatter.Table(append([][]string{res.Variables}, res.Table()...))
	fmt.Fprintf(formatter.GetErrWriter(), "%d row(s)\n", res.Len())
	return nil
}

func outputRecords(formatter *OutputFormatter, recs []analysis.Record) error {
	var failed []string
	for _, r := range recs {
		if r.IsError() {
			failed = append(failed, r.ID)
		}
	}

	if formatter.Format == "json" {
		panels := make([]analysis.Panel, len(recs))
		for i, r := range recs {
			panels[i] = analysis.ToPanel(r)
		}
		if err := formatter.Success(panels); err != nil {
			return err
		}
	} else {
		for _, r := range recs {
			printPanel(formatter, analysis.ToPanel(r))
		}
	}

	if len(failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d analyses could not be fetched: %v", len(failed), len(recs), failed))
	}
	return nil
}

func printPanel(formatter *OutputFormatter, p analysis.Panel) {
	w := formatter.Writer
	fmt.Fprintf(w, "%s\n", p.Title)
	for _, d := range p.Details {
		fmt.Fprintf(w, "  %s: %s\n", d.Label, d.Value)
	}
	fmt.Fprintln(w)
}
