package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/iadas/internal/graph"
	"github.com/roach88/iadas/internal/hierarchy"
	"github.com/roach88/iadas/internal/results"
)

// ParseOutput is the JSON payload of the parse command.
type ParseOutput struct {
	Variables   []string                      `json:"variables"`
	Rows        []map[string]string           `json:"rows"`
	ColumnTypes map[string]results.ColumnType `json:"columnTypes,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	var types bool

	cmd := &cobra.Command{
		Use:   "parse <results.json>",
		Short: "Decode a SPARQL JSON results file",
		Long: `Decode a SPARQL 1.1 JSON results file (- for stdin) into a table of
display values. With --types the column type of each variable is shown.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			res, err := loadResults(args[0], cmd)
			if err != nil {
				return resultsFailure(formatter, err)
			}
			formatter.VerboseLog("Decoded %d row(s), %d variable(s)", res.Len(), len(res.Variables))

			if formatter.Format == "json" {
				out := ParseOutput{Variables: res.Variables, Rows: res.DisplayRows()}
				if types {
					out.ColumnTypes = res.ColumnTypes()
				}
				return formatter.Success(out)
			}

			if types {
				colTypes := res.ColumnTypes()
				rows := [][]string{{"variable", "type"}}
				for _, v := range res.Variables {
					rows = append(rows, []string{v, string(colTypes[v])})
				}
				formatter.Table(rows)
				return nil
			}
			formatter.Table(append([][]string{res.Variables}, res.Table()...))
			return nil
		},
	}
	cmd.Flags().BoolVar(&types, "types", false, "show column types instead of rows")
	return cmd
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	var network bool

	cmd := &cobra.Command{
		Use:   "graph <results.json>",
		Short: "Build the entity/value graph of a results file",
		Long: `Build the entity/value graph of a SPARQL JSON results file: one
entity node per row, one value node per distinct (variable, value).
With --network the factor network of analysis rows is built instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			res, err := loadResults(args[0], cmd)
			if err != nil {
				return resultsFailure(formatter, err)
			}

			if network {
				net := graph.Network(res.Rows)
				if formatter.Format == "json" {
					return formatter.Success(net)
				}
				fmt.Fprintf(formatter.Writer, "%d node(s), %d link(s)\n", len(net.Nodes), len(net.Links))
				for _, l := range net.Links {
					fmt.Fprintf(formatter.Writer, "  %s -> %s [%s] %s\n", l.Source, l.Target, l.Relation, l.DetailedLabel)
				}
				return nil
			}

			g := graph.Materialize(res.Rows, res.Variables)
			if formatter.Format == "json" {
				return formatter.Success(g)
			}
			fmt.Fprintf(formatter.Writer, "%d node(s), %d edge(s)\n", len(g.Nodes), len(g.Edges))
			for _, n := range g.ValueNodes() {
				fmt.Fprintf(formatter.Writer, "  %s\t%s=%s\n", n.ID, n.Property, n.Label)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&network, "network", false, "build the factor network")
	return cmd
}

// NewHierarchyCommand creates the hierarchy command.
func NewHierarchyCommand(rootOpts *RootOptions) *cobra.Command {
	var concept string

	cmd := &cobra.Command{
		Use:   "hierarchy <results.json>",
		Short: "Resolve a concept hierarchy results file",
		Long: `Resolve the results of a hierarchy query into the concept, its
parents (ordered N1, N2, ...) and its children. Failures are reported in
the envelope, which is always printed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, "reading results", err)
			}
			env := hierarchy.New(hierarchy.WithLogger(rootOpts.logger())).ResolveJSON(data, concept)
			if formatter.Format == "json" {
				if err := formatter.Success(env); err != nil {
					return err
				}
			} else {
				printEnvelope(formatter, env)
			}
			if !env.Success {
				return NewExitError(ExitFailure, env.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&concept, "concept", "", "concept label")
	_ = cmd.MarkFlagRequired("concept")
	return cmd
}

func printEnvelope(formatter *OutputFormatter, env hierarchy.Envelope) {
	w := formatter.Writer
	if !env.Success {
		fmt.Fprintf(w, "%s: %s\n", env.Concept, env.Error)
		return
	}
	fmt.Fprintf(w, "%s (%d result(s))\n", env.Concept, env.TotalResults)
	if env.Self != nil {
		fmt.Fprintf(w, "  self: %s <%s>\n", env.Self.Label, env.Self.URI)
	}
	for _, p := range env.Parents {
		fmt.Fprintf(w, "  %s: %s\n", p.DisplayLevel, p.Label)
	}
	for _, c := range env.Children {
		fmt.Fprintf(w, "  child: %s\n", c.Label)
	}
}

func loadResults(path string, cmd *cobra.Command) (*results.Result, error) {
	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	return results.Parse(data)
}

func resultsFailure(formatter *OutputFormatter, err error) error {
	if errors.Is(err, results.ErrInvalidShape) {
		return formatter.Fail(ExitCommandError, ErrCodeBadResults, "decoding results", err)
	}
	return formatter.Fail(ExitCommandError, ErrCodeNotFound, "reading results", err)
}
