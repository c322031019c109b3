package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/eventdsl/adapters/clock"
	"github.com/artpar/eventdsl/adapters/idgen"
	"github.com/artpar/eventdsl/adapters/sqlite"
	"github.com/artpar/eventdsl/config"
	"github.com/artpar/eventdsl/core/formatter"
	"github.com/artpar/eventdsl/core/parser"
	"github.com/artpar/eventdsl/ports"
)

var (
	storeDSN    string
	storeFormat string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage stored declaration revisions",
	Long: `Manage declarations kept in the SQLite declaration store. The latest
revision of each type is served next to the types directory.

The database path comes from --dsn, then store.dsn in the configuration.`,
}

var storePutCmd = &cobra.Command{
	Use:   "put FILE...",
	Short: "Store a new revision of every declaration in FILE",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStorePut,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest revision of every type",
	Args:  cobra.NoArgs,
	RunE:  runStoreList,
}

var storeHistoryCmd = &cobra.Command{
	Use:   "history TYPE",
	Short: "List every revision of TYPE, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreHistory,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete TYPE",
	Short: "Delete every revision of TYPE",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreDelete,
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storePutCmd, storeListCmd, storeHistoryCmd, storeDeleteCmd)

	storeCmd.PersistentFlags().StringVar(&storeDSN, "dsn", "", "SQLite database path")
	storeCmd.PersistentFlags().StringVarP(&storeFormat, "format", "o", "table", "output format: table, json or yaml")
}

func openStore(ctx context.Context) (*sqlite.DeclarationStore, func(), error) {
	dsn := storeDSN
	if dsn == "" {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return nil, nil, err
		}
		dsn = cfg.Store.DSN
		if dsn == "" {
			dsn = "eventdsl.db"
		}
	}

	db, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	store := sqlite.NewDeclarationStore(db, idgen.Revision{}, clock.Real{})
	return store, func() { db.Close() }, nil
}

func runStorePut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs, err := parser.SplitDocuments(string(data))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, doc := range docs {
			decl, err := parser.Parse(doc)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := store.Put(ctx, ports.Revision{TypeID: decl.ID, Source: doc}); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(out, "  %s stored %s\n", checkMark(), typeName(decl.ID))
		}
	}
	return nil
}

func runStoreList(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	revs, err := store.Latest(cmd.Context())
	if err != nil {
		return err
	}
	return writeRevisions(cmd, revs)
}

func runStoreHistory(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	revs, err := store.History(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("history of %s: %w", args[0], err)
	}
	return writeRevisions(cmd, revs)
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  %s deleted %s\n", checkMark(), typeName(args[0]))
	return nil
}

func writeRevisions(cmd *cobra.Command, revs []ports.Revision) error {
	out, ok := formatter.Get(storeFormat)
	if !ok {
		return fmt.Errorf("unknown format %q (want one of %v)", storeFormat, formatter.List())
	}

	records := make([]map[string]any, 0, len(revs))
	for _, rev := range revs {
		records = append(records, map[string]any{
			"type":       rev.TypeID,
			"revision":   rev.ID,
			"created_at": rev.CreatedAt.Format(time.RFC3339),
		})
	}
	opts := formatter.FormatOptions{
		Columns: []string{"type", "revision", "created_at"},
		Color:   colorEnabled(),
	}
	return out.FormatList(cmd.OutOrStdout(), "revisions", records, opts)
}
