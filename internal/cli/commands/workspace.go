package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/cli/output"
	"github.com/nestgrid-labs/nestgrid/internal/loader"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// NewWorkspaceCommand creates the workspace command group.
func NewWorkspaceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}
	cmd.AddCommand(newWorkspaceListCommand())
	cmd.AddCommand(newWorkspaceCreateCommand())
	cmd.AddCommand(newWorkspaceRenameCommand())
	cmd.AddCommand(newWorkspaceDeleteCommand())
	cmd.AddCommand(newWorkspaceSetCommand())
	cmd.AddCommand(newWorkspaceApplyCommand())
	cmd.AddCommand(newWorkspaceColumnsCommand())
	return cmd
}

func newWorkspaceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			workspaces, err := cc.Store.ListWorkspaces()
			if err != nil {
				return err
			}

			if cc.Renderer.Mode() == output.ModeJSON {
				type wsInfo struct {
					ID      string `json:"id"`
					Name    string `json:"name"`
					Rows    int    `json:"rows"`
					Columns int    `json:"columns"`
					AutoRun bool   `json:"auto_run"`
					Sandbox bool   `json:"sandbox"`
				}
				infos := make([]wsInfo, 0, len(workspaces))
				for _, ws := range workspaces {
					rows, _ := cc.Store.CountRows(ws.ID)
					cols, _ := cc.Store.ListColumns(ws.ID)
					infos = append(infos, wsInfo{ws.ID, ws.Name, rows, len(cols), ws.AutoRun, ws.Sandbox})
				}
				return cc.Renderer.JSON(infos)
			}

			if len(workspaces) == 0 {
				cc.Renderer.Println("No workspaces. Create one with: nestgrid workspace create <name>")
				return nil
			}
			rows := make([][]string, 0, len(workspaces))
			for _, ws := range workspaces {
				n, _ := cc.Store.CountRows(ws.ID)
				cols, _ := cc.Store.ListColumns(ws.ID)
				flags := ""
				if ws.AutoRun {
					flags += "auto-run "
				}
				if ws.Sandbox {
					flags += "sandbox"
				}
				rows = append(rows, []string{ws.ID, ws.Name, strconv.Itoa(len(cols)), strconv.Itoa(n), flags})
			}
			cc.Renderer.Table([]string{"ID", "Name", "Columns", "Rows", "Flags"}, rows)
			return nil
		},
	}
}

func newWorkspaceCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cc.Store.CreateWorkspace(args[0])
			if err != nil {
				return err
			}
			if cc.Renderer.Mode() == output.ModeJSON {
				return cc.Renderer.JSON(map[string]string{"id": ws.ID, "name": ws.Name})
			}
			cc.Renderer.Successf("created workspace %q (%s)", ws.Name, ws.ID)
			return nil
		},
	}
}

func newWorkspaceRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <workspace> <new-name>",
		Short: "Rename a workspace",
		Args:  cobra.ExactArgs(2),
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
			if err := cc.Store.RenameWorkspace(ws.ID, args[1]); err != nil {
				return err
			}
			cc.Renderer.Successf("renamed %q to %q", ws.Name, args[1])
			return nil
		},
	}
}

func newWorkspaceDeleteCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <workspace>",
		Short: "Delete a workspace and all its data",
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
			if !force {
				n, _ := cc.Store.CountRows(ws.ID)
				return fmt.Errorf("refusing to delete %q (%d rows) without --force", ws.Name, n)
			}
			if err := cc.Store.DeleteWorkspace(ws.ID); err != nil {
				return err
			}
			cc.Renderer.Successf("deleted workspace %q", ws.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Delete without confirmation")
	return cmd
}

func newWorkspaceSetCommand() *cobra.Command {
	var autoRun, sandbox string
	cmd := &cobra.Command{
		Use:   "set <workspace>",
		Short: "Toggle workspace settings",
		Example: `  # Enable auto-run
  nestgrid workspace set Prospects --auto-run=on

  # Enter sandbox mode (enrichment returns mock data)
  nestgrid workspace set Prospects --sandbox=on`,
		Args: cobra.ExactArgs(1),
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

			newAutoRun, err := applyToggle(ws.AutoRun, autoRun)
			if err != nil {
				return fmt.Errorf("--auto-run: %w", err)
			}
			newSandbox, err := applyToggle(ws.Sandbox, sandbox)
			if err != nil {
				return fmt.Errorf("--sandbox: %w", err)
			}
			if err := cc.Store.UpdateWorkspaceSettings(ws.ID, newAutoRun, newSandbox, ws.NestID); err != nil {
				return err
			}
			cc.Renderer.Successf("workspace %q: auto-run=%v sandbox=%v", ws.Name, newAutoRun, newSandbox)
			return nil
		},
	}
	cmd.Flags().StringVar(&autoRun, "auto-run", "", "Enable or disable auto-run (on|off)")
	cmd.Flags().StringVar(&sandbox, "sandbox", "", "Enable or disable sandbox mode (on|off)")
	return cmd
}

func applyToggle(current bool, flag string) (bool, error) {
	switch flag {
	case "":
		return current, nil
	case "on", "true":
		return true, nil
	case "off", "false":
		return false, nil
	}
	return current, fmt.Errorf("want on or off, got %q", flag)
}

func newWorkspaceApplyCommand() *cobra.Command {
	var defFile string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a workspace definition file",
		Long: `Apply a declarative YAML workspace definition: the workspace and any
missing columns are created, and existing columns matched by name get
their configuration updated. Columns not listed in the file are left
untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := os.Open(defFile)
			if err != nil {
				return err
			}
			defer f.Close()

			def, err := loader.Parse(f)
			if err != nil {
				return err
			}
			res, err := loader.Apply(cc.Store, def)
			if err != nil {
				return err
			}

			if cc.Renderer.Mode() == output.ModeJSON {
				return cc.Renderer.JSON(map[string]any{
					"workspace":         res.Workspace.Name,
					"workspace_created": res.WorkspaceCreated,
					"columns_created":   len(res.Created),
					"columns_updated":   len(res.Updated),
				})
			}
			if res.WorkspaceCreated {
				cc.Renderer.Successf("created workspace %q", res.Workspace.Name)
			}
			cc.Renderer.Successf("applied %s: %d columns created, %d updated",
				defFile, len(res.Created), len(res.Updated))
			return nil
		},
	}
	cmd.Flags().StringVarP(&defFile, "file", "f", "", "Workspace definition file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newWorkspaceColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <workspace>",
		Short: "List the columns of a workspace",
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
			cols, err := cc.Store.ListColumns(ws.ID)
			if err != nil {
				return err
			}

			if cc.Renderer.Mode() == output.ModeJSON {
				return cc.Renderer.JSON(cols)
			}
			rows := make([][]string, 0, len(cols))
			for _, col := range cols {
				rows = append(rows, []string{
					strconv.Itoa(col.Position), col.Name, string(col.Type), columnSummary(col),
				})
			}
			cc.Renderer.Table([]string{"#", "Name", "Type", "Config"}, rows)
			return nil
		},
	}
}

// columnSummary is the one-line config description shown by `workspace
// columns`.
func columnSummary(col *core.Column) string {
	switch col.Type {
	case core.ColumnField:
		if col.Config.DataType != "" && col.Config.DataType != core.DataText {
			return fmt.Sprintf("%s (%s)", col.Config.SourceField, col.Config.DataType)
		}
		return col.Config.SourceField
	case core.ColumnEnrichment:
		return col.Config.Provider
	case core.ColumnAI:
		return truncate(col.Config.Prompt, 48)
	case core.ColumnFormula:
		return truncate(col.Config.Expression, 48)
	case core.ColumnWaterfall:
		return fmt.Sprintf("%d sources", len(col.Config.Sources))
	case core.ColumnHTTP:
		return truncate(col.Config.URL, 48)
	case core.ColumnMerge:
		return fmt.Sprintf("%d columns", len(col.Config.MergeColumnIDs))
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// formatAge is used by list views to show relative timestamps.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Format("2006-01-02")
}
