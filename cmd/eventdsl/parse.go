package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artpar/eventdsl/core/parser"
)

var parseFormat string

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Print the parsed declarations of a file",
	Long: `Parse FILE and print its declarations in their canonical form. Rules
are printed as expression trees.

Examples:
  eventdsl parse meeting.evt
  eventdsl parse meeting.evt --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&parseFormat, "format", "o", "json", "output format: json or yaml")
}

func runParse(cmd *cobra.Command, args []string) error {
	decls, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}
	return writeStructured(cmd.OutOrStdout(), parseFormat, decls)
}

// writeStructured writes v as indented JSON, or as YAML converted from the
// JSON form so that custom JSON marshalers are honored.
func writeStructured(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
