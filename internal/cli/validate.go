package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queryshift/queryshift/internal/sqlir"
	"github.com/queryshift/queryshift/internal/sqltext/parser"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate [query]",
		Short: "Parse a query and check the IR invariants",
		Long: `Parse a query and verify it is well formed: every column reference
resolves to a relation in scope and aggregates are compatible with
the grouping. No rewriting is performed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, file, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the query from a file")

	return cmd
}

func runValidate(rootOpts *RootOptions, file string, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	queryText, err := readQuery(args, file, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading query", err)
	}

	q, err := parser.Parse(queryText)
	if err != nil {
		return outputInvalid(formatter, ErrCodeSyntax, err)
	}
	if err := sqlir.Validate(q); err != nil {
		code := ErrCodeMalformed
		if merr, ok := sqlir.IsMalformed(err); ok {
			code = string(merr.Code)
		}
		return outputInvalid(formatter, code, err)
	}

	if formatter.Format == "json" {
		return formatter.JSON(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "query is well formed")
	return nil
}

func outputInvalid(formatter *OutputFormatter, code string, err error) error {
	_ = formatter.Error(code, err.Error(), ValidationResult{Valid: false, Code: code, Detail: err.Error()})
	return WrapExitError(ExitFailure, "validation failed", err)
}
