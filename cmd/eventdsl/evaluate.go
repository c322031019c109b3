package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/eventdsl/adapters/clock"
	"github.com/artpar/eventdsl/adapters/filesystem"
	"github.com/artpar/eventdsl/core/compiler"
	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/formatter"
	"github.com/artpar/eventdsl/core/runtime"
)

// evalFlags are shared by validate and render.
type evalFlags struct {
	types    string
	events   string
	typeID   string
	now      string
	timezone string
	format   string
}

var (
	validateFlags evalFlags
	renderFlags   evalFlags
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate events against their types",
	Long: `Validate every event in --events against its declared type.

Events come from a .json, .yaml or .ics file. Calendar events take their
type from X-EVENT-TYPE, then the first CATEGORIES value, then --type.
The command fails if any event is invalid or has an unknown type.

Examples:
  eventdsl validate --types types/ --events events.json
  eventdsl validate --types types/ --events week.ics --type meeting --timezone Europe/Berlin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate(cmd, validateFlags, validateEvents)
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render events for display",
	Long: `Render every event in --events with its type's display bindings.

Examples:
  eventdsl render --types types/ --events events.yaml
  eventdsl render --types types/ --events week.ics --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate(cmd, renderFlags, renderEvents)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(renderCmd)

	for _, c := range []struct {
		cmd   *cobra.Command
		flags *evalFlags
	}{{validateCmd, &validateFlags}, {renderCmd, &renderFlags}} {
		c.cmd.Flags().StringVar(&c.flags.types, "types", "types", "declaration directory or file")
		c.cmd.Flags().StringVar(&c.flags.events, "events", "", "events file (.json, .yaml or .ics)")
		c.cmd.Flags().StringVarP(&c.flags.typeID, "type", "t", "", "type of events that name none")
		c.cmd.Flags().StringVar(&c.flags.now, "now", "", "reference time for $now (RFC 3339, default current time)")
		c.cmd.Flags().StringVar(&c.flags.timezone, "timezone", "", "IANA timezone for calendar accessors")
		c.cmd.Flags().StringVarP(&c.flags.format, "format", "o", "table", "output format: table, json or yaml")
		c.cmd.MarkFlagRequired("events")
	}
}

type evaluator func(reg *runtime.Registry, events []event.Event, ctx event.Context) ([]map[string]any, int)

func runEvaluate(cmd *cobra.Command, f evalFlags, eval evaluator) error {
	out, ok := formatter.Get(f.format)
	if !ok {
		return fmt.Errorf("unknown format %q (want one of %v)", f.format, formatter.List())
	}

	var loc *time.Location
	if f.timezone != "" {
		var err error
		if loc, err = time.LoadLocation(f.timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	ctx := event.Context{Location: loc}
	if f.now != "" {
		now, err := time.Parse(time.RFC3339, f.now)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		ctx.Now = now
	}

	decls, err := filesystem.Dir{Path: f.types}.Load(cmd.Context())
	if err != nil {
		return err
	}
	model, err := compiler.Compile(decls)
	if err != nil {
		return err
	}
	reg := runtime.NewRegistry(runtime.WithLocation(loc), runtime.WithClock(clock.In(loc)))
	reg.Load(cmd.Context(), model)

	events, err := loadEvents(f.events, f.typeID, loc)
	if err != nil {
		return err
	}
	ctx.Events = events

	records, failed := eval(reg, events, ctx)
	opts := formatter.FormatOptions{Color: colorEnabled(), MaxWidth: 60}
	if err := out.FormatList(cmd.OutOrStdout(), "events", records, opts); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d events failed", failed, len(events))
	}
	return nil
}

func validateEvents(reg *runtime.Registry, events []event.Event, ctx event.Context) ([]map[string]any, int) {
	records := make([]map[string]any, 0, len(events))
	failed := 0
	for _, ev := range events {
		result, err := reg.Validate(ev.Type, ev, ctx)
		if err != nil {
			result = event.ValidationResult{Errors: []string{err.Error()}}
		}
		if !result.Valid {
			failed++
		}
		records = append(records, map[string]any{
			"id":     ev.ID,
			"type":   ev.Type,
			"valid":  result.Valid,
			"errors": result.Errors,
		})
	}
	return records, failed
}

func renderEvents(reg *runtime.Registry, events []event.Event, ctx event.Context) ([]map[string]any, int) {
	records := make([]map[string]any, 0, len(events))
	failed := 0
	for _, ev := range events {
		record := map[string]any{"id": ev.ID, "type": ev.Type}
		rendered, err := reg.Render(ev.Type, ev, ctx)
		if err != nil {
			var unknown *runtime.UnknownTypeError
			if errors.As(err, &unknown) {
				record["error"] = "unknown type"
			} else {
				record["error"] = err.Error()
			}
			failed++
		} else {
			record["title"] = rendered.Title
			record["color"] = rendered.Color
			record["icon"] = rendered.Icon
			record["description"] = rendered.Description
			if len(rendered.Extra) > 0 {
				record["extra"] = rendered.Extra
			}
		}
		records = append(records, record)
	}
	return records, failed
}
