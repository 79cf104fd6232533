package commands

import (
	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/cli/output"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, buildDate, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := GetRenderer(cmd.Context())
			if r.Mode() == output.ModeJSON {
				return r.JSON(map[string]string{
					"version":    version,
					"build_date": buildDate,
					"git_commit": gitCommit,
				})
			}
			r.Printf("nestgrid %s (built %s, commit %s)\n", version, buildDate, gitCommit)
			return nil
		},
	}
}
