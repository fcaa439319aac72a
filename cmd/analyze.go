package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"layoffscrub/internal/analytics"
	"layoffscrub/internal/config"
	"layoffscrub/internal/store"
	"layoffscrub/internal/ui"
)

var (
	analyzeStorePath string
	analyzeBy        string
	analyzeTop       int
	analyzeRolling   bool
	analyzeLimit     int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize the cleaned layoffs table",
	Long: `Analyze reads the cleaned table from the local store and reports
aggregate views: overall totals, totals grouped by a dimension, the
top companies per year, and a rolling monthly total. Without flags it
prints the overall summary.`,
	Run: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeStorePath, "store", "", "Local store path (defaults to the configured store)")
	analyzeCmd.Flags().StringVar(&analyzeBy, "by", "", "Group totals by a dimension (company, country, industry, location, stage, year)")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 0, "Show the top N companies per year")
	analyzeCmd.Flags().BoolVar(&analyzeRolling, "rolling", false, "Show monthly totals with a rolling sum")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "Limit grouped output to the first N rows")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	if analyzeStorePath != "" {
		cfg.Store.Path = analyzeStorePath
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

	counts, err := st.Counts(ctx)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	if counts.Clean == 0 {
		ui.ShowWarning("The cleaned table is empty; run 'layoffscrub clean <input.csv>' first")
	}

	svc := analytics.NewService(st.DB())
	sections := analyzeBy != "" || analyzeTop > 0 || analyzeRolling

	if !sections {
		summary, err := svc.Summary(ctx)
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		renderSummary(os.Stdout, summary)
		return
	}

	if analyzeBy != "" {
		totals, err := svc.TotalsBy(ctx, analyzeBy, analyzeLimit)
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		renderTotals(os.Stdout, analyzeBy, totals)
	}

	if analyzeTop > 0 {
		rows, err := svc.TopCompaniesPerYear(ctx, analyzeTop)
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		renderTopCompanies(os.Stdout, rows)
	}

	if analyzeRolling {
		rows, err := svc.RollingMonthly(ctx)
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		renderRolling(os.Stdout, rows)
	}
}

func renderSummary(w io.Writer, s *analytics.Summary) {
	fmt.Fprintf(w, "\n%s\n", color.New(color.Bold).Sprint("Cleaned dataset summary"))
	fmt.Fprintf(w, "  %-24s %d\n", "events:", s.Events)
	fmt.Fprintf(w, "  %-24s %d\n", "total laid off:", s.TotalLaidOff)
	fmt.Fprintf(w, "  %-24s %s\n", "largest single event:", nullInt(s.MaxLaidOff))
	fmt.Fprintf(w, "  %-24s %s\n", "highest percentage:", nullPercentage(s))
	fmt.Fprintf(w, "  %-24s %s\n", "first date:", nullString(s.FirstDate))
	fmt.Fprintf(w, "  %-24s %s\n", "last date:", nullString(s.LastDate))
}

func renderTotals(w io.Writer, dimension string, totals []analytics.DimensionTotal) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", dimension, "Laid off", "Events"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for i, row := range totals {
		label := row.Label
		if label == "NULL" {
			label = color.YellowString("NULL")
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			label,
			strconv.FormatInt(row.LaidOff, 10),
			strconv.FormatInt(row.Events, 10),
		})
	}

	table.Render()
}

func renderTopCompanies(w io.Writer, rows []analytics.CompanyYear) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Year", "Rank", "Company", "Laid off"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, row := range rows {
		company := row.Company
		if row.Rank == 1 {
			company = color.GreenString(company)
		}
		table.Append([]string{
			strconv.Itoa(row.Year),
			strconv.Itoa(row.Rank),
			company,
			strconv.FormatInt(row.LaidOff, 10),
		})
	}

	table.Render()
}

func renderRolling(w io.Writer, rows []analytics.MonthlyTotal) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Month", "Laid off", "Rolling total"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, row := range rows {
		table.Append([]string{
			row.Month,
			strconv.FormatInt(row.LaidOff, 10),
			strconv.FormatInt(row.Rolling, 10),
		})
	}

	table.Render()
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatInt(v.Int64, 10)
}

func nullString(v sql.NullString) string {
	if !v.Valid {
		return "-"
	}
	return v.String
}

func nullPercentage(s *analytics.Summary) string {
	if !s.MaxPercentage.Valid {
		return "-"
	}
	return s.MaxPercentage.Decimal.String()
}
