package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/cli/output"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var (
		workspaceRef string
		columnRef    string
		all          bool
		rowList      string
		sandboxRun   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run enrichment for a column or the whole workspace",
		Long: `Run enrichment for one column (--column) or every enrichable column in
position order (--all). Cells execute in batches; rows whose input is
empty are skipped and their cells reset.

With --sandbox, the run uses deterministic mock data and writes
nothing to the stored grid.`,
		Example: `  # Run one column
  nestgrid run --workspace Prospects --column Profile

  # Run all enrichable columns left to right
  nestgrid run --workspace Prospects --all

  # Re-run two specific rows
  nestgrid run -w Prospects --column Profile --rows row-1,row-2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !all && columnRef == "" {
				return fmt.Errorf("give --column or --all")
			}
			if all && columnRef != "" {
				return fmt.Errorf("--column and --all are mutually exclusive")
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cc.ResolveWorkspace(workspaceRef)
			if err != nil {
				return err
			}

			if sandboxRun && !ws.Sandbox {
				if err := cc.Store.UpdateWorkspaceSettings(ws.ID, ws.AutoRun, true, ws.NestID); err != nil {
					return err
				}
				defer func() {
					if err := cc.Store.UpdateWorkspaceSettings(ws.ID, ws.AutoRun, false, ws.NestID); err != nil {
						cc.Logger.Warn("failed to restore sandbox setting", "workspace", ws.ID, "error", err)
					}
				}()
			}

			var runs []*core.Run
			if all {
				runs, err = cc.Engine.RunAll(cmd.Context(), ws.ID)
			} else {
				col, cerr := cc.ResolveColumn(ws.ID, columnRef)
				if cerr != nil {
					return cerr
				}
				var run *core.Run
				run, err = cc.Engine.RunColumnRows(cmd.Context(), ws.ID, col.ID, splitRows(rowList), core.RunManual)
				if run != nil {
					runs = append(runs, run)
				}
			}
			if err != nil {
				return err
			}
			return reportRuns(cc, runs)
		},
	}
	cmd.Flags().StringVarP(&workspaceRef, "workspace", "w", "", "Workspace (name or ID)")
	cmd.Flags().StringVarP(&columnRef, "column", "c", "", "Column to run (name or ID)")
	cmd.Flags().BoolVar(&all, "all", false, "Run every enrichable column in order")
	cmd.Flags().StringVar(&rowList, "rows", "", "Comma-separated row IDs (default: all rows)")
	cmd.Flags().BoolVar(&sandboxRun, "sandbox", false, "Run with mock data, persisting nothing")
	_ = cmd.MarkFlagRequired("workspace")
	cmd.AddCommand(newRunsCommand())
	return cmd
}

func splitRows(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func reportRuns(cc *CommandContext, runs []*core.Run) error {
	if cc.Renderer.Mode() == output.ModeJSON {
		type runInfo struct {
			ID        string `json:"id"`
			ColumnID  string `json:"column_id,omitempty"`
			Status    string `json:"status"`
			Total     int    `json:"total"`
			Succeeded int    `json:"succeeded"`
			Failed    int    `json:"failed"`
			Sandbox   bool   `json:"sandbox"`
			Error     string `json:"error,omitempty"`
		}
		infos := make([]runInfo, 0, len(runs))
		for _, run := range runs {
			infos = append(infos, runInfo{
				run.ID, run.ColumnID, string(run.Status),
				run.Total, run.Succeeded, run.Failed, run.Sandbox, run.Error,
			})
		}
		return cc.Renderer.JSON(infos)
	}

	failed := false
	for _, run := range runs {
		name := "all columns"
		if run.ColumnID != "" {
			if col, err := cc.Store.GetColumn(run.ColumnID); err == nil && col != nil {
				name = col.Name
			}
		}
		switch run.Status {
		case core.RunSuccess:
			cc.Renderer.Successf("%s: %d succeeded", name, run.Succeeded)
		case core.RunPartial:
			cc.Renderer.Warnf("%s: %d succeeded, %d failed", name, run.Succeeded, run.Failed)
		default:
			failed = true
			if run.Error != "" {
				cc.Renderer.Errorf("%s: %s", name, run.Error)
			} else {
				cc.Renderer.Errorf("%s: %d failed", name, run.Failed)
			}
		}
	}
	if failed {
		return fmt.Errorf("run failed")
	}
	return nil
}

func newRunsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <workspace>",
		Short: "Show recent runs for a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cc.ResolveWorkspace(args[0])
			if err != nil {
				return err
			}
			runs, err := cc.Store.ListRuns(ws.ID, limit)
			if err != nil {
				return err
			}

			if cc.Renderer.Mode() == output.ModeJSON {
				return cc.Renderer.JSON(runs)
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				name := "all"
				if run.ColumnID != "" {
					if col, err := cc.Store.GetColumn(run.ColumnID); err == nil && col != nil {
						name = col.Name
					}
				}
				counts := fmt.Sprintf("%d/%d", run.Succeeded, run.Total)
				if run.Failed > 0 {
					counts += fmt.Sprintf(" (%d failed)", run.Failed)
				}
				rows = append(rows, []string{
					formatAge(run.StartedAt), name, string(run.Kind), string(run.Status), counts,
					strconv.FormatBool(run.Sandbox),
				})
			}
			cc.Renderer.Table([]string{"When", "Column", "Kind", "Status", "Cells", "Sandbox"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	return cmd
}
