package commands

import (
	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/tui"
	"github.com/nestgrid-labs/nestgrid/pkg/grid"
)

// NewViewCommand creates the view command.
func NewViewCommand() *cobra.Command {
	var workspaceRef string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse a workspace in the terminal",
		Long: `Open a read-only terminal viewer for a workspace. The grid shows
formatted display values with the workspace's saved filters and sorts
applied; / searches across all columns.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cc.ResolveWorkspace(workspaceRef)
			if err != nil {
				return err
			}
			snap, err := cc.Engine.LoadSnapshot(ws.ID)
			if err != nil {
				return err
			}
			filters, err := cc.Store.ListFilters(ws.ID)
			if err != nil {
				return err
			}
			sorts, err := cc.Store.ListSorts(ws.ID)
			if err != nil {
				return err
			}
			rows := grid.Pipeline(snap.Rows, snap.Columns, filters, "", sorts, snap.ValueFunc())

			return tui.Run(tui.New(ws, snap.Columns, rows, snap.DisplayValue))
		},
	}
	cmd.Flags().StringVarP(&workspaceRef, "workspace", "w", "", "Workspace to view (name or ID)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
