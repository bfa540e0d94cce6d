package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queryshift/queryshift/internal/dialect"
)

// DialectInfo describes one registered dialect's capabilities.
type DialectInfo struct {
	Name             string `json:"name"`
	WindowFunctions  bool   `json:"window_functions"`
	CTEs             bool   `json:"ctes"`
	InternalRewrites bool   `json:"internal_rewrites"`
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dialects",
		Short:         "List registered dialects and their capabilities",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:  rootOpts.Format,
				Writer:  cmd.OutOrStdout(),
				Verbose: rootOpts.Verbose,
			}

			var infos []DialectInfo
			for _, name := range dialect.Names() {
				d, err := dialect.Lookup(name)
				if err != nil {
					return WrapExitError(ExitCommandError, "listing dialects", err)
				}
				infos = append(infos, DialectInfo{
					Name:             d.Name,
					WindowFunctions:  d.SupportsWindowFunctions,
					CTEs:             d.SupportsCTE,
					InternalRewrites: d.InternalRewrites,
				})
			}

			if formatter.Format == "json" {
				return formatter.JSON(infos)
			}
			for _, info := range infos {
				fmt.Fprintf(formatter.Writer, "%s\twindows=%t\tctes=%t\tinternal-rewrites=%t\n",
					info.Name, info.WindowFunctions, info.CTEs, info.InternalRewrites)
			}
			return nil
		},
	}
}
