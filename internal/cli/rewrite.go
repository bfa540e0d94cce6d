package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/queryshift/queryshift/internal/catalog"
	"github.com/queryshift/queryshift/internal/dialect"
	"github.com/queryshift/queryshift/internal/emit"
	"github.com/queryshift/queryshift/internal/harness"
	"github.com/queryshift/queryshift/internal/rewriter"
	"github.com/queryshift/queryshift/internal/rules"
	"github.com/queryshift/queryshift/internal/sqlir"
	"github.com/queryshift/queryshift/internal/sqltext/parser"
)

// CLI error codes.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeSyntax      = "E002"
	ErrCodeMalformed   = "E003"
	ErrCodeCatalog     = "E004"
	ErrCodeDialect     = "E005"
	ErrCodeUnsupported = "E006"
)

// RewriteOptions holds flags for the rewrite command.
type RewriteOptions struct {
	File      string
	Dialect   string
	Catalog   string
	MaxPasses int
}

// RewriteResult is the payload for rewrite output.
type RewriteResult struct {
	Query  string          `json:"query"`
	Report rewriter.Report `json:"report"`
}

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RewriteOptions{}

	cmd := &cobra.Command{
		Use:   "rewrite [query]",
		Short: "Rewrite a query to its heuristic-applied form",
		Long: `Parse a query, apply the heuristic rule set to fixpoint, and emit
the rewritten query for the target dialect together with a report of
every rule that fired.

The query is read from the argument, from --file, or from stdin.
Catalog facts (declared column types and unique keys) enable the
rules that need schema proofs; without a catalog those rules never
fire.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the query from a file")
	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", dialect.Default().Name, "target dialect")
	cmd.Flags().StringVarP(&opts.Catalog, "catalog", "c", "", "catalog file with schema facts (.yaml or .cue)")
	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", rewriter.DefaultMaxPasses, "rewrite pass cap")

	return cmd
}

func runRewrite(rootOpts *RootOptions, opts *RewriteOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	queryText, err := readQuery(args, opts.File, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading query", err)
	}

	d, err := dialect.Lookup(opts.Dialect)
	if err != nil {
		_ = formatter.Error(ErrCodeDialect, err.Error(), nil)
		return WrapExitError(ExitCommandError, "resolving dialect", err)
	}

	cat := catalog.Empty()
	if opts.Catalog != "" {
		cat, err = harness.LoadCatalog(opts.Catalog)
		if err != nil {
			_ = formatter.Error(ErrCodeCatalog, err.Error(), nil)
			return WrapExitError(ExitCommandError, "loading catalog", err)
		}
		formatter.VerboseLog("loaded catalog %s (%d tables)", opts.Catalog, len(cat.Names()))
	}

	q, err := parser.Parse(queryText)
	if err != nil {
		_ = formatter.Error(ErrCodeSyntax, err.Error(), nil)
		return WrapExitError(ExitFailure, "parsing query", err)
	}

	res, err := rewriter.Rewrite(q, &rules.Env{Catalog: cat, Dialect: d}, rewriter.Options{
		MaxPasses: opts.MaxPasses,
	})
	if err != nil {
		if merr, ok := sqlir.IsMalformed(err); ok {
			_ = formatter.Error(ErrCodeMalformed, merr.Error(), merr)
			return WrapExitError(ExitFailure, "malformed query", err)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "rewriting query", err)
	}
	formatter.VerboseLog("fixpoint after %d pass(es), %d firing(s)", res.Report.Passes, len(res.Report.Firings))

	out, err := emit.Emit(res.Query, d)
	if err != nil {
		if uerr, ok := emit.IsUnsupported(err); ok {
			_ = formatter.Error(ErrCodeUnsupported, uerr.Error(), uerr)
			return WrapExitError(ExitFailure, "emitting query", err)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "emitting query", err)
	}

	result := RewriteResult{Query: out, Report: res.Report}
	if formatter.Format == "json" {
		return formatter.JSON(result)
	}
	printRewriteText(formatter.Writer, result)
	return nil
}

func printRewriteText(w io.Writer, result RewriteResult) {
	fmt.Fprintln(w, result.Query)
	if len(result.Report.Firings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Applied %d rewrite(s) in %d pass(es):\n", len(result.Report.Firings), result.Report.Passes)
		for _, f := range result.Report.Firings {
			fmt.Fprintf(w, "  %s  %s\n", f.RuleID, f.Description)
			fmt.Fprintf(w, "      before: %s\n", f.Before)
			fmt.Fprintf(w, "      after:  %s\n", f.After)
		}
	}
	for _, n := range result.Report.Notes {
		fmt.Fprintf(w, "note [%s]: %s\n", n.RuleID, n.Message)
	}
	for _, warn := range result.Report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

// readQuery resolves the query text from the argument, a file, or
// stdin, in that precedence.
func readQuery(args []string, file string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read query from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no query given: pass it as an argument, via --file, or on stdin")
	}
	return text, nil
}
