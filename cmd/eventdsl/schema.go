package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/eventdsl/core/compiler"
	"github.com/artpar/eventdsl/core/parser"
	"github.com/artpar/eventdsl/core/schema"
)

var (
	schemaType   string
	schemaFormat string
)

var schemaCmd = &cobra.Command{
	Use:   "schema FILE",
	Short: "Print the payload JSON Schema of declared types",
	Long: `Compile FILE and print the JSON Schema of each type's payload, keyed by
type id. With --type only that type's schema is printed.

Examples:
  eventdsl schema types.evt
  eventdsl schema types.evt --type meeting`,
	Args: cobra.ExactArgs(1),
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&schemaType, "type", "t", "", "print only this type")
	schemaCmd.Flags().StringVarP(&schemaFormat, "format", "o", "json", "output format: json or yaml")
}

func runSchema(cmd *cobra.Command, args []string) error {
	decls, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}
	model, err := compiler.Compile(decls)
	if err != nil {
		return err
	}

	if schemaType != "" {
		ct, ok := model.Get(schemaType)
		if !ok {
			return fmt.Errorf("unknown event type %q", schemaType)
		}
		return writeStructured(cmd.OutOrStdout(), schemaFormat, ct.Schema)
	}

	schemas := make(map[string]*schema.Schema, model.Len())
	for _, ct := range model.Types() {
		schemas[ct.ID] = ct.Schema
	}
	return writeStructured(cmd.OutOrStdout(), schemaFormat, schemas)
}
