package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/report"
	"github.com/dbsmedya/gomigrate/internal/source"
	"github.com/dbsmedya/gomigrate/internal/types"
)

const (
	dbTarget = "target"
	dbSource = "source"
)

var (
	browseDB  string
	showLimit int
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables and views of the target or source database",
	Long: `Tables lists the tables and views visible in the configured schema of
the target database, or of the source database with --db source.

Example:
  gomigrate tables --config migrate.yaml
  gomigrate tables --db source`,
	RunE: runTables,
}

var showCmd = &cobra.Command{
	Use:   "show <table>",
	Short: "Print the first rows of a table or view",
	Long: `Show prints the columns and the first rows of a table or view, by
default from the target database. Use it to check what a migration wrote.

Example:
  gomigrate show users --limit 20
  gomigrate show v_legacy_users --db source`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	for _, c := range []*cobra.Command{tablesCmd, showCmd} {
		c.Flags().StringVar(&browseDB, "db", dbTarget, "Database to browse (target|source)")
		rootCmd.AddCommand(c)
	}
	showCmd.Flags().IntVar(&showLimit, "limit", 50, "Maximum number of rows to print")
}

// connectBrowse opens the database selected by --db.
func connectBrowse(ctx context.Context, cfg *config.Config) (*database.Manager, *database.Handle, error) {
	mgr := database.NewManager(cfg)
	switch browseDB {
	case dbTarget:
		if err := mgr.ConnectTarget(ctx); err != nil {
			return nil, nil, err
		}
		return mgr, mgr.Target, nil
	case dbSource:
		if !cfg.Source.IsConfigured() {
			return nil, nil, errors.New("no source database configured")
		}
		if err := mgr.ConnectSource(ctx); err != nil {
			return nil, nil, err
		}
		return mgr, mgr.Source, nil
	}
	return nil, nil, fmt.Errorf("invalid --db %q (must be 'target' or 'source')", browseDB)
}

func runTables(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	mgr, h, err := connectBrowse(ctx, cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	names, err := h.Tables(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		cmd.Printf("No tables in %s database\n", browseDB)
		return nil
	}

	cmd.Printf("Tables in %s database:\n\n", browseDB)
	for _, name := range names {
		cmd.Printf("  %s\n", name)
	}
	cmd.Printf("\nTotal: %d table(s)\n", len(names))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if showLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", showLimit)
	}
	table := args[0]

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	mgr, h, err := connectBrowse(ctx, cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	exists, err := h.Exists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %q not found in %s database", table, browseDB)
	}

	reader, err := source.OpenTable(ctx, h, table)
	if err != nil {
		return err
	}
	defer reader.Close()

	var rows []types.Record
	for len(rows) < showLimit {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", table, err)
		}
		rows = append(rows, rec)
	}

	cmd.Printf("%s (%s database)\n\n", table, browseDB)
	return (report.Renderer{Color: true}).RenderRows(cmd.OutOrStdout(), reader.Schema().Names(), rows)
}
