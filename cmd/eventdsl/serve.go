package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/eventdsl/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API over the configured declarations.

The configuration file is optional; EVENTDSL_* environment variables are
used when it does not exist. A loaded configuration file is reloaded on
change or SIGHUP.

Examples:
  eventdsl serve
  eventdsl serve --config /etc/eventdsl/eventdsl.yaml
  EVENTDSL_TYPES_DIR=./types EVENTDSL_TYPES_WATCH=1 eventdsl serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap.NewFromFile(cfgFile)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return a.Run()
}
