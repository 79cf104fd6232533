package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nestgrid-labs/nestgrid/internal/config"
)

const configTemplate = `# nestgrid project configuration.
# Values can be overridden with NESTGRID_* environment variables
# (NESTGRID_CHAT__MODEL) and CLI flags.

state_path: nestgrid.db
output: text

enrich:
  base_url: ""
  api_key: ${NESTGRID_ENRICH_KEY}

chat:
  endpoint: ""
  api_key: ${NESTGRID_CHAT_KEY}
  model: ""

run:
  batch_size: 5
  auto_run_debounce_seconds: 2

server:
  host: 127.0.0.1
  port: 8324
`

const workspaceTemplate = `# Example workspace definition. Apply with:
#   nestgrid workspace apply -f workspaces/prospects.yaml
workspace: Prospects
auto_run: false
columns:
  - name: Name
    type: field
  - name: LinkedIn
    type: field
    data_type: url
  - name: Profile
    type: enrichment
    provider: fullEnrichFromLinkedIn
    input_column: LinkedIn
    output_field: company.name
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a nestgrid project",
		Long: `Create a nestgrid.yaml configuration file and an example workspace
definition in the given directory (default: current directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir)
		},
	}
}

func runInit(cmd *cobra.Command, dir string) error {
	r := GetRenderer(cmd.Context())

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	cfgPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}
	if err := os.WriteFile(cfgPath, []byte(configTemplate), 0o644); err != nil {
		return err
	}

	wsDir := filepath.Join(dir, "workspaces")
	if err := os.MkdirAll(wsDir, 0o750); err != nil {
		return err
	}
	wsPath := filepath.Join(wsDir, "prospects.yaml")
	if _, err := os.Stat(wsPath); os.IsNotExist(err) {
		if err := os.WriteFile(wsPath, []byte(workspaceTemplate), 0o644); err != nil {
			return err
		}
	}

	r.Successf("created %s", cfgPath)
	r.Successf("created %s", wsPath)
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Set enrich.base_url and chat.endpoint in nestgrid.yaml")
	r.Println("  2. nestgrid workspace apply -f workspaces/prospects.yaml")
	r.Println("  3. nestgrid import prospects.csv --workspace Prospects")
	return nil
}
