package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"layoffscrub/internal/config"
	"layoffscrub/internal/dataset"
	"layoffscrub/internal/pipeline"
	"layoffscrub/internal/rules"
	"layoffscrub/internal/store"
	"layoffscrub/internal/ui"
)

// policyValue is a flag value that accepts only the malformed-date
// policies the pipeline knows.
type policyValue string

var _ pflag.Value = (*policyValue)(nil)

func (p *policyValue) String() string { return string(*p) }

func (p *policyValue) Set(s string) error {
	if _, err := pipeline.ParsePolicy(s); err != nil {
		return fmt.Errorf("must be %q or %q", pipeline.PolicyAbort, pipeline.PolicyNull)
	}
	*p = policyValue(s)
	return nil
}

func (p *policyValue) Type() string { return "policy" }

var (
	cleanStorePath  string
	cleanRulesPath  string
	cleanOutPath    string
	cleanDatePolicy policyValue
	cleanDryRun     bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <input.csv>",
	Short: "Run the full cleaning pipeline over a layoffs CSV",
	Long: `Clean ingests a nine-column layoffs CSV, snapshots it as the raw
recovery point, then deduplicates, normalizes industry and country
fields, coerces dates and prunes rows with no layoff figures. The
cleaned table replaces the previous one in the local store. Cleaning an
already-clean dataset changes nothing.`,
	Args: cobra.ExactArgs(1),
	Run:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVar(&cleanStorePath, "store", "", "Local store path (defaults to the configured store)")
	cleanCmd.Flags().StringVar(&cleanRulesPath, "rules", "", "Cleaning rules file (defaults to the configured rules)")
	cleanCmd.Flags().StringVarP(&cleanOutPath, "out", "o", "", "Also write the cleaned dataset to this CSV file")
	cleanCmd.Flags().Var(&cleanDatePolicy, "on-malformed-date", "What to do with unparseable dates: abort or null")
	cleanCmd.Flags().BoolVarP(&cleanDryRun, "dry-run", "d", false, "Run the pipeline and show the report without persisting anything")
}

func runClean(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	inputPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	if cleanStorePath != "" {
		cfg.Store.Path = cleanStorePath
	}
	if cleanRulesPath != "" {
		cfg.Rules.Path = cleanRulesPath
	}
	if cleanDatePolicy != "" {
		cfg.Cleaning.OnMalformedDate = string(cleanDatePolicy)
	}

	ruleDoc, err := rules.LoadOrDefault(cfg.Rules.Path)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	pipe, err := pipeline.New(pipeline.Config{
		Rules:           ruleDoc,
		OnMalformedDate: pipeline.MalformedDatePolicy(cfg.Cleaning.OnMalformedDate),
	})
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowHeader("layoffscrub clean")

	raw, err := dataset.ReadFile(inputPath)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	ui.ShowInfo(fmt.Sprintf("Ingested %d rows from %s", len(raw), inputPath))

	if cleanDryRun {
		ui.ShowWarning("Dry-run mode: nothing will be persisted")

		_, report, err := pipe.Run(raw)
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}

		showCleanReport(report)
		ui.ShowSuccess(fmt.Sprintf("Dry run finished: %d rows would remain", report.RowsOut))
		return
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

	// The raw snapshot is written before any cleaning so an aborted run
	// still leaves a complete recovery point behind.
	if err := st.ReplaceRaw(ctx, raw); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	cleaned, report, err := pipe.Run(raw)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if err := st.ReplaceClean(ctx, cleaned); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if cleanOutPath != "" {
		if err := dataset.WriteFile(cleanOutPath, cleaned); err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		ui.ShowInfo(fmt.Sprintf("Cleaned dataset written to %s", cleanOutPath))
	}

	showCleanReport(report)
	ui.ShowSuccess(fmt.Sprintf("Cleaned %d rows into %s in %s",
		report.RowsOut, st.Path(), ui.FormatDuration(report.Duration)))
}

func showCleanReport(report *pipeline.Report) {
	ui.PrintSection("Cleaning report")
	ui.PrintKeyValue("rows ingested", strconv.Itoa(report.RowsIn))
	ui.PrintKeyValue("duplicates removed", strconv.Itoa(report.DuplicatesRemoved))
	ui.PrintKeyValue("industries emptied", strconv.Itoa(report.IndustriesEmptied))
	ui.PrintKeyValue("industries backfilled", strconv.Itoa(report.IndustriesBackfilled))
	ui.PrintKeyValue("industries canonicalized", strconv.Itoa(report.IndustriesCanonicalized))
	ui.PrintKeyValue("countries trimmed", strconv.Itoa(report.CountriesTrimmed))
	ui.PrintKeyValue("dates coerced", strconv.Itoa(report.DatesCoerced))
	ui.PrintKeyValue("dates nulled", strconv.Itoa(report.DatesNulled))
	ui.PrintKeyValue("rows pruned", strconv.Itoa(report.RowsPruned))
	ui.PrintKeyValue("rows remaining", strconv.Itoa(report.RowsOut))

	for _, amb := range report.Ambiguities {
		ui.ShowWarning(fmt.Sprintf("company %q has conflicting industries %v; backfilled with %q",
			amb.Company, amb.Industries, amb.Chosen))
	}
}
