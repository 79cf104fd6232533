package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/csvio"
	"github.com/nestgrid-labs/nestgrid/pkg/grid"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var (
		workspaceRef string
		outPath      string
		raw          bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a workspace as CSV",
		Long: `Export the workspace grid as CSV using the workspace's saved filters
and sorts, with formatted display values. Sandbox data is included
when the workspace is in sandbox mode, and the default filename is
suffixed with -SANDBOX to make that obvious.`,
		Example: `  # Export to the default filename (<workspace>.csv)
  nestgrid export --workspace Prospects

  # Export everything, ignoring filters and sorts, to stdout
  nestgrid export --workspace Prospects --raw --out -`,
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

			rows := snap.Rows
			if !raw {
				filters, err := cc.Store.ListFilters(ws.ID)
				if err != nil {
					return err
				}
				sorts, err := cc.Store.ListSorts(ws.ID)
				if err != nil {
					return err
				}
				rows = grid.Pipeline(rows, snap.Columns, filters, "", sorts, snap.ValueFunc())
			}

			if outPath == "" {
				outPath = csvio.ExportFilename(ws.Name, ws.Sandbox)
			}
			w := cmd.OutOrStdout()
			if outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := csvio.Export(w, snap.Columns, rows, snap.DisplayValue); err != nil {
				return err
			}
			if outPath != "-" {
				cc.Renderer.Successf("exported %d rows to %s", len(rows), outPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspaceRef, "workspace", "w", "", "Workspace to export (name or ID)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (- for stdout)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Ignore saved filters and sorts")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
