package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/voltgrid/csms/config"
	"github.com/voltgrid/csms/infra/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last-known status of every station",
	RunE:  printStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// printStatus reads the durable Status Store directly; it is the read path
// dashboards and billing use, so it works without a running server.
func printStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend != "sqlite" {
		return fmt.Errorf("status requires the sqlite store backend, got %s", cfg.Store.Backend)
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	snap, err := st.Snapshot()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%s\t%s\n", id, snap[id])
	}
	return nil
}
