package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
	"github.com/nestgrid-labs/nestgrid/pkg/formula"
)

// NewFormulaCommand creates the formula command.
func NewFormulaCommand() *cobra.Command {
	var (
		workspaceRef string
		rowID        string
	)
	cmd := &cobra.Command{
		Use:   "formula [expression]",
		Short: "Evaluate formula expressions against workspace data",
		Long: `Evaluate a formula expression against a sample row. Column references
use /Name syntax and resolve to the row's display values; unresolved
references become empty strings.

Without an expression argument, an interactive REPL opens.`,
		Example: `  # One-shot evaluation against the first row
  nestgrid formula -w Prospects 'CONCAT(/Name, " <", /Email, ">")'

  # Interactive REPL against a specific row
  nestgrid formula -w Prospects --row row-42`,
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
			snap, err := cc.Engine.LoadSnapshot(ws.ID)
			if err != nil {
				return err
			}

			var row *core.Row
			if rowID != "" {
				for _, r := range snap.Rows {
					if r.ID == rowID {
						row = r
						break
					}
				}
				if row == nil {
					return fmt.Errorf("row %q not found", rowID)
				}
			} else if len(snap.Rows) > 0 {
				row = snap.Rows[0]
			}

			values := make(map[string]string, len(snap.Columns))
			if row != nil {
				for _, col := range snap.Columns {
					if col.Type != core.ColumnFormula {
						values[col.Name] = snap.RawValue(row, col)
					}
				}
			}

			if len(args) == 1 {
				cc.Renderer.Println(formula.Evaluate(args[0], values))
				return nil
			}
			return formulaREPL(cmd, cc, snap.Columns, values)
		},
	}
	cmd.Flags().StringVarP(&workspaceRef, "workspace", "w", "", "Workspace providing sample data (name or ID)")
	cmd.Flags().StringVar(&rowID, "row", "", "Row to evaluate against (default: first row)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func formulaREPL(cmd *cobra.Command, cc *CommandContext, columns []*core.Column, values map[string]string) error {
	names := make([]string, 0, len(columns))
	items := make([]readline.PrefixCompleterInterface, 0, len(columns))
	for _, col := range columns {
		names = append(names, "/"+col.Name)
		items = append(items, readline.PcItem("/"+col.Name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "formula> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		Stdout:          cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	cc.Renderer.Println("Evaluating against sample row. Columns: " + strings.Join(names, " "))
	cc.Renderer.Println("Type an expression, or exit / ctrl+d to quit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		cc.Renderer.Println(formula.Evaluate(line, values))
	}
}
