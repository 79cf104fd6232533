package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/cli/output"
	"github.com/nestgrid-labs/nestgrid/internal/csvio"
	"github.com/nestgrid-labs/nestgrid/internal/nest"
)

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	var (
		workspaceRef string
		fromNest     bool
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import rows into a workspace",
		Long: `Import rows from a CSV file, or from the configured nest source with
--from-nest. CSV headers become field columns in file order; headers
matching existing column names reuse those columns.`,
		Example: `  # Import a CSV file
  nestgrid import prospects.csv --workspace Prospects

  # Pull up to 500 records from the configured nest (postgres, duckdb, or csv)
  nestgrid import --from-nest --workspace Prospects --limit 500`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cc.ResolveWorkspace(workspaceRef)
			if err != nil {
				return err
			}

			if fromNest {
				return importFromNest(cmd, cc, ws.ID, limit)
			}
			if len(args) != 1 {
				return fmt.Errorf("give a CSV file to import, or use --from-nest")
			}
			return importCSV(cmd, cc, ws.ID, args[0])
		},
	}
	cmd.Flags().StringVarP(&workspaceRef, "workspace", "w", "", "Target workspace (name or ID)")
	cmd.Flags().BoolVar(&fromNest, "from-nest", false, "Import from the configured nest source")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to pull from the nest (0 = all)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func importCSV(cmd *cobra.Command, cc *CommandContext, workspaceID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := csvio.Import(f, cc.Store, workspaceID)
	if err != nil {
		return err
	}

	if cc.Renderer.Mode() == output.ModeJSON {
		return cc.Renderer.JSON(map[string]int{
			"columns_created": len(res.Columns),
			"rows_imported":   len(res.Rows),
		})
	}
	cc.Renderer.Successf("imported %d rows from %s (%d new columns)", len(res.Rows), path, len(res.Columns))
	return nil
}

func importFromNest(cmd *cobra.Command, cc *CommandContext, workspaceID string, limit int) error {
	src, err := openNestSource(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := nest.Import(cmd.Context(), cc.Store, workspaceID, src, limit)
	if err != nil {
		return err
	}

	if cc.Renderer.Mode() == output.ModeJSON {
		return cc.Renderer.JSON(map[string]any{
			"source":          src.Name(),
			"columns_created": len(res.Columns),
			"rows_imported":   len(res.Rows),
		})
	}
	cc.Renderer.Successf("imported %d rows from %s nest (%d new columns)", len(res.Rows), src.Name(), len(res.Columns))
	return nil
}

// openNestSource builds the record source the config points at.
func openNestSource(ctx context.Context, cc *CommandContext) (nest.Source, error) {
	n := cc.Config.Nest
	switch n.Type {
	case "csv":
		return nest.OpenCSV(n.Path)
	case "postgres":
		return nest.OpenPostgres(ctx, nest.SQLConfig{
			Host:     n.Host,
			Port:     n.Port,
			Database: n.Database,
			Username: n.User,
			Password: n.Password,
			SSLMode:  n.SSLMode,
			Table:    n.Table,
			Query:    n.Query,
		}, cc.Logger)
	case "duckdb":
		return nest.OpenDuckDB(ctx, nest.SQLConfig{
			Path:  n.Path,
			Table: n.Table,
			Query: n.Query,
		}, cc.Logger)
	case "":
		return nil, fmt.Errorf("no nest configured (set nest.type in nestgrid.yaml)")
	}
	return nil, fmt.Errorf("unknown nest type %q", n.Type)
}
