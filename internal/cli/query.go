package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/querybuild"
	"github.com/roach88/iadas/internal/store"
)

// FilterFlags holds the filter criteria settable from the command line.
type FilterFlags struct {
	File string

	VI, VD            string
	Sport, SportLevel string
	SportType         string
	Gender            string
	Relation          string
	Category          string
	Country           string
	MinAge, MaxAge    float64
	MinSample         int
	Significant       bool
	Limit             int
}

func (ff *FilterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&ff.File, "filter", "", "filter file (YAML or JSON, - for stdin)")
	fs.StringVar(&ff.VI, "vi", "", "independent variable (factor)")
	fs.StringVar(&ff.VD, "vd", "", "dependent variable (behaviour)")
	fs.StringVar(&ff.Sport, "sport", "", "sport name contains")
	fs.StringVar(&ff.SportLevel, "sport-level", "", "sport level")
	fs.StringVar(&ff.SportType, "sport-type", "", "sport type")
	fs.StringVar(&ff.Gender, "gender", "", "population gender")
	fs.StringVar(&ff.Relation, "relation", "", "relation result (+, -, NS)")
	fs.StringVar(&ff.Category, "category", "", "factor category")
	fs.StringVar(&ff.Country, "country", "", "population country")
	fs.Float64Var(&ff.MinAge, "min-age", 0, "minimum mean age")
	fs.Float64Var(&ff.MaxAge, "max-age", 0, "maximum mean age")
	fs.IntVar(&ff.MinSample, "min-sample", 0, "minimum sample size")
	fs.BoolVar(&ff.Significant, "significant", false, "only significant relations")
	fs.IntVar(&ff.Limit, "limit", 0, "maximum results (0 for the default)")
}

// Filter builds the filter: the file first, then each flag given on the
// command line overriding it.
func (ff *FilterFlags) Filter(cmd *cobra.Command) (querybuild.Filter, error) {
	var f querybuild.Filter
	if ff.File != "" {
		var err error
		if f, err = LoadFilter(ff.File, cmd.InOrStdin()); err != nil {
			return f, err
		}
	}

	fs := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("vi", &f.SelectedVI, ff.VI)
	set("vd", &f.SelectedVD, ff.VD)
	set("sport", &f.SportName, ff.Sport)
	set("sport-level", &f.SportLevel, ff.SportLevel)
	set("sport-type", &f.SportType, ff.SportType)
	set("gender", &f.Gender, ff.Gender)
	set("relation", &f.ResultatRelation, ff.Relation)
	set("category", &f.FactorCategory, ff.Category)
	set("country", &f.Country, ff.Country)
	if fs.Changed("min-age") {
		f.MinAge = &ff.MinAge
	}
	if fs.Changed("max-age") {
		f.MaxAge = &ff.MaxAge
	}
	if fs.Changed("min-sample") {
		f.MinSampleSize = &ff.MinSample
	}
	if fs.Changed("significant") {
		f.SignificantRelation = &ff.Significant
	}
	if fs.Changed("limit") {
		f.Limit = ff.Limit
	}
	return f, nil
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	ff := &FilterFlags{}

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Build the analysis search query",
		Long: `Build the SPARQL SELECT that searches analyses matching a filter.

Criteria come from --filter and the individual flags, the flags winning.
The query is printed, not run; see exec.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			f, err := ff.Filter(cmd)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "reading filter", err)
			}
			b, err := newBuilder(querybuild.DefaultLimit)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading ontology", err)
			}
			text, err := b.Select(f)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "building select", err)
			}
			return outputQuery(formatter, text, nil)
		},
	}
	ff.register(cmd)
	return cmd
}

// RecordOptions holds flags for the record-writing commands.
type RecordOptions struct {
	*RootOptions
	Record string
	Entity string
	Apply  bool
}

func (o *RecordOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Record, "record", "r", "", "record file (YAML or JSON, - for stdin)")
	cmd.Flags().StringVar(&o.Entity, "entity", "", "write only this entity kind (e.g. Sport)")
	cmd.Flags().BoolVar(&o.Apply, "apply", false, "send the update to the endpoint and journal it")
	_ = cmd.MarkFlagRequired("record")
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "insert",
		Short:         "Build the INSERT DATA request of a record",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, opts, store.KindInsert, func(b *querybuild.Builder, r querybuild.Record) (string, error) {
				if opts.Entity != "" {
					return b.InsertEntity(opts.Entity, r)
				}
				return b.Insert(r)
			})
		},
	}
	opts.register(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Build the DELETE/INSERT/WHERE request of a record",
		Long: `Build the SPARQL Update replacing the stored values of a record.

Every field of every entity is rewritten; fields missing from the record
are written as N.A.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, opts, store.KindUpdate, func(b *querybuild.Builder, r querybuild.Record) (string, error) {
				if opts.Entity != "" {
					return b.UpdateEntity(opts.Entity, r)
				}
				return b.Update(r)
			})
		},
	}
	opts.register(cmd)
	return cmd
}

func runRecord(cmd *cobra.Command, opts *RecordOptions, kind store.Kind, build func(*querybuild.Builder, querybuild.Record) (string, error)) error {
	formatter := opts.formatter(cmd)
	rec, err := LoadRecord(opts.Record, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "reading record", err)
	}
	b, err := newBuilder(querybuild.DefaultLimit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading ontology", err)
	}
	text, err := build(b, rec)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, fmt.Sprintf("building %s", kind), err)
	}
	return finishUpdate(cmd, opts.RootOptions, formatter, kind, rec.ID(), text, opts.Apply)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "delete <analysis-id>",
		Short: "Build the request deleting an analysis",
		Long: `Build the SPARQL Update removing an analysis and its dependent
entities. The article is kept; only its link to the analysis is removed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			b, err := newBuilder(querybuild.DefaultLimit)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading ontology", err)
			}
			text, err := b.Delete(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "building delete", err)
			}
			return finishUpdate(cmd, rootOpts, formatter, store.KindDelete, args[0], text, apply)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "send the update to the endpoint and journal it")
	return cmd
}

// NewFetchQueryCommand creates the fetch-query command.
func NewFetchQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var search bool
	var limit int

	cmd := &cobra.Command{
		Use:   "fetch-query <analysis-id>",
		Short: "Print the query fetching one analysis record",
		Long: `Print the SPARQL SELECT returning every (entity, property, value) of
one analysis. With --search the argument is an identifier substring and
the analysis search query is printed instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			b, err := newBuilder(querybuild.DefaultLimit)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading ontology", err)
			}
			var text string
			if search {
				text, err = b.Search(args[0], limit)
			} else {
				text, err = b.FetchRecord(args[0])
			}
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "building fetch query", err)
			}
			return outputQuery(formatter, text, nil)
		},
	}
	cmd.Flags().BoolVar(&search, "search", false, "print the identifier search query")
	cmd.Flags().IntVar(&limit, "limit", 0, "search result limit (0 for the default)")
	return cmd
}

// QueryOutput is the JSON payload of the query-building commands.
type QueryOutput struct {
	Query   string       `json:"query"`
	Journal *store.Entry `json:"journal,omitempty"`
}

func outputQuery(formatter *OutputFormatter, text string, entry *store.Entry) error {
	if formatter.Format == "json" {
		return formatter.Success(QueryOutput{Query: text, Journal: entry})
	}
	fmt.Fprint(formatter.Writer, text)
	if entry != nil {
		fmt.Fprintf(formatter.GetErrWriter(), "applied %s %s (journal %s)\n", entry.Kind, entry.AnalysisID, entry.ID)
	}
	return nil
}

// finishUpdate prints text, first sending it through the journal when
// apply is set.
func finishUpdate(cmd *cobra.Command, opts *RootOptions, formatter *OutputFormatter, kind store.Kind, analysisID, text string, apply bool) error {
	if !apply {
		return outputQuery(formatter, text, nil)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
	}
	client, err := newClient(cfg, opts.logger())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "creating endpoint client", err)
	}
	journal, err := store.Open(cfg.Journal.Path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "opening journal", err)
	}
	defer journal.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	warnRepeated(ctx, opts, journal, kind, text)

	formatter.VerboseLog("Sending %s for %s to %v", kind, analysisID, client.URLs())
	entry, err := journal.Apply(ctx, kind, analysisID, text, client.Update)
	if err != nil {
		if entry.ID == "" {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "journalling update", err)
		}
		return formatter.Fail(ExitFailure, ErrCodeEndpoint, fmt.Sprintf("%s failed (journal %s)", kind, entry.ID), err)
	}
	return outputQuery(formatter, text, &entry)
}

// warnRepeated logs when the same update text was already applied.
func warnRepeated(ctx context.Context, opts *RootOptions, journal *store.Store, kind store.Kind, text string) {
	hash, err := ir.QueryHash(string(kind), text)
	if err != nil {
		return
	}
	previous, err := journal.FindByHash(ctx, hash)
	if err != nil {
		opts.logger().Warn("journal lookup failed", "err", err)
		return
	}
	for _, e := range previous {
		if e.Status == store.StatusApplied {
			opts.logger().Warn("identical update already applied", "kind", kind, "journal", e.ID, "at", e.CreatedAt)
			return
		}
	}
}
