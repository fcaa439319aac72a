package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"layoffscrub/internal/config"
	"layoffscrub/internal/creds"
	"layoffscrub/internal/store"
	"layoffscrub/internal/ui"
)

var (
	publishStorePath string
	publishYes       bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the cleaned table to the configured warehouse",
	Long: `Publish replaces the warehouse table with the cleaned table from the
local store. The warehouse password is read from the OS keychain; run
'layoffscrub setup' to store it. Publishing never modifies the local
store.`,
	Run: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishStorePath, "store", "", "Local store path (defaults to the configured store)")
	publishCmd.Flags().BoolVarP(&publishYes, "yes", "y", false, "Publish without asking for confirmation")
}

func runPublish(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	if publishStorePath != "" {
		cfg.Store.Path = publishStorePath
	}

	manager, err := creds.NewManager()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	password, err := manager.Get(creds.PasswordKey(cfg.Warehouse))
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if err := store.ValidateWarehouse(cfg.Warehouse, password); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Init(ctx); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	rows, err := st.CleanRows(ctx)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	target := fmt.Sprintf("%s.%s.%s", cfg.Warehouse.Database, cfg.Warehouse.Schema, cfg.Warehouse.Table)
	ui.ShowHeader("layoffscrub publish")
	ui.ShowInfo(fmt.Sprintf("%d cleaned rows ready for %s", len(rows), target))

	if !publishYes {
		confirm, err := ui.Confirm(fmt.Sprintf("Replace %s with these rows?", target), true)
		if err != nil || !confirm {
			ui.ShowWarning("Publish cancelled")
			return
		}
	}

	warehouse := store.NewWarehouse(cfg.Warehouse, password)

	spinner := ui.NewSpinner("Connecting to warehouse")
	spinner.Start()
	if err := warehouse.Connect(ctx); err != nil {
		spinner.Stop(false, "Connection failed")
		ui.ShowError(err)
		os.Exit(1)
	}
	spinner.Stop(true, "Connected to warehouse")
	defer warehouse.Close()

	start := time.Now()
	spinner = ui.NewSpinner(fmt.Sprintf("Publishing %d rows to %s", len(rows), target))
	spinner.Start()
	if err := warehouse.Publish(ctx, rows); err != nil {
		spinner.Stop(false, "Publish failed")
		ui.ShowError(err)
		os.Exit(1)
	}
	spinner.Stop(true, "Publish complete")

	ui.ShowSuccess(fmt.Sprintf("Published %d rows to %s in %s",
		len(rows), target, ui.FormatDuration(time.Since(start))))
}
