package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/eventdsl/adapters/filesystem"
	"github.com/artpar/eventdsl/core/compiler"
	"github.com/artpar/eventdsl/core/schema"
)

var checkCmd = &cobra.Command{
	Use:   "check PATH...",
	Short: "Parse and compile declarations",
	Long: `Parse and compile every declaration file under each PATH.

Each PATH may be a directory (searched recursively for declaration files)
or a single file. Every type that compiles is listed; every failure is
reported with its location. The command fails if anything failed.

Examples:
  eventdsl check types/
  eventdsl check meeting.evt holiday.evt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failures := 0

	var decls []schema.TypeDeclaration
	for _, path := range args {
		loaded, err := filesystem.Dir{Path: path}.Load(cmd.Context())
		if err != nil {
			fmt.Fprintf(out, "  %s %s\n", crossMark(), err)
			failures++
			continue
		}
		decls = append(decls, loaded...)
	}

	model, errs := compiler.CompileEach(decls)
	for _, ct := range model.Types() {
		d := ct.Declaration()
		fmt.Fprintf(out, "  %s %s %s\n", checkMark(), typeName(ct.ID),
			dim(fmt.Sprintf("(%d fields, %d rules, %d display bindings)", len(d.Fields), len(d.Rules), len(d.Display))))
	}
	for _, err := range errs {
		fmt.Fprintf(out, "  %s %s\n", crossMark(), err)
	}
	failures += len(errs)

	fmt.Fprintln(out)
	if failures > 0 {
		return fmt.Errorf("%d of %d declarations failed", failures, model.Len()+failures)
	}
	fmt.Fprintf(out, "%d types OK.\n", model.Len())
	return nil
}
