package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"layoffscrub/internal/config"
	"layoffscrub/internal/pipeline"
	"layoffscrub/internal/store"
	"layoffscrub/internal/ui"
)

var (
	inspectStorePath string
	inspectNarrow    bool
	inspectLimit     int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect the raw snapshot in the local store",
}

var inspectDupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Show duplicate groups in the raw snapshot",
	Long: `Dupes groups the raw snapshot by the full-attribute key and lists
every group that occurs more than once. These are the rows a cleaning
run removes. With --narrow the grouping uses only company, industry,
total laid off and date; that view conflates genuinely distinct events
and is for diagnosis only.`,
	Run: runInspectDupes,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.AddCommand(inspectDupesCmd)

	inspectDupesCmd.Flags().StringVar(&inspectStorePath, "store", "", "Local store path (defaults to the configured store)")
	inspectDupesCmd.Flags().BoolVar(&inspectNarrow, "narrow", false, "Group on company, industry, total laid off and date only")
	inspectDupesCmd.Flags().IntVar(&inspectLimit, "limit", 0, "Show only the first N groups")
}

func runInspectDupes(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	if inspectStorePath != "" {
		cfg.Store.Path = inspectStorePath
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

	raw, err := st.RawRows(ctx)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	groups := pipeline.FullDuplicates(raw)
	if inspectNarrow {
		groups = pipeline.NarrowDuplicates(raw)
		ui.ShowInfo("Narrow grouping conflates distinct events; removal always uses the full key")
	}

	if len(groups) == 0 {
		ui.ShowSuccess("No duplicate groups found")
		return
	}

	total := len(groups)
	if inspectLimit > 0 && len(groups) > inspectLimit {
		groups = groups[:inspectLimit]
	}

	renderDuplicateGroups(os.Stdout, groups)
	ui.ShowInfo(fmt.Sprintf("%d duplicate groups in %d raw rows", total, len(raw)))
}

func renderDuplicateGroups(w io.Writer, groups []pipeline.DuplicateGroup) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Company", "Industry", "Laid off", "Date", "Rows"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, g := range groups {
		table.Append([]string{
			g.Company,
			g.Industry,
			g.TotalLaidOff,
			g.Date,
			strconv.Itoa(g.Count),
		})
	}

	table.Render()
}
