// Command nestgrid is the enrichment grid CLI and server.
package main

import (
	"os"

	"github.com/nestgrid-labs/nestgrid/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
