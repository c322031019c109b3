package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Global flags
	cfgFile string
	noColor bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "eventdsl",
	Short: "Event type declarations: check, compile, evaluate and serve",
	Long: `eventdsl compiles declarative event type definitions into validators
and renderers for calendar events.

Authoring:
  eventdsl check types/           # Parse and compile every declaration
  eventdsl parse meeting.evt      # Print the parsed declaration
  eventdsl schema meeting.evt     # Print the payload JSON Schema

Evaluation:
  eventdsl validate --types types/ --events week.ics
  eventdsl render --types types/ --events events.json

Serving:
  eventdsl serve                  # Start the HTTP API
  eventdsl store put meeting.evt  # Store a declaration revision`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "eventdsl.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable styled output")
}

// colorEnabled reports whether output to stdout should be styled.
func colorEnabled() bool {
	return !noColor && term.IsTerminal(int(os.Stdout.Fd()))
}
