package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"layoffscrub/internal/config"
	"layoffscrub/internal/rules"
	"layoffscrub/internal/ui"
)

var rulesPathFlag string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the cleaning rules",
	Long: `The cleaning rules are editable data, not code: synonym groups map
industry label variants onto one canonical form, and the country trim
cutset lists the punctuation stripped from country names. Rules live in
a local YAML file and can be synced from a shared Git repository.`,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active cleaning rules",
	Run:   runRulesShow,
}

var rulesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the cleaning rules from the configured Git repository",
	Run:   runRulesSync,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesSyncCmd)

	rulesShowCmd.Flags().StringVar(&rulesPathFlag, "rules", "", "Rules file (defaults to the configured rules)")
}

func runRulesShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	path := cfg.Rules.Path
	if rulesPathFlag != "" {
		path = rulesPathFlag
	}

	doc, err := rules.LoadOrDefault(path)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if _, statErr := os.Stat(path); statErr != nil {
		ui.ShowInfo(fmt.Sprintf("No rules file at %s; showing the built-in defaults", path))
	} else {
		ui.ShowInfo(fmt.Sprintf("Rules loaded from %s", path))
	}

	renderRules(os.Stdout, doc)
}

func runRulesSync(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if cfg.Rules.GitURL == "" {
		ui.ShowError(fmt.Errorf("no rules repository configured; set rules.git_url in %s", config.GetConfigFile()))
		os.Exit(1)
	}

	spinner := ui.NewSpinner(fmt.Sprintf("Syncing rules from %s", cfg.Rules.GitURL))
	spinner.Start()

	doc, err := rules.NewSyncService().Sync(ctx, cfg.Rules)
	if err != nil {
		spinner.Stop(false, "Rules sync failed")
		ui.ShowError(err)
		os.Exit(1)
	}
	spinner.Stop(true, fmt.Sprintf("Rules synced to %s", cfg.Rules.Path))

	renderRules(os.Stdout, doc)
}

func renderRules(w io.Writer, doc *rules.Rules) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Canonical", "Variants"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, group := range doc.Synonyms {
		table.Append([]string{group.Canonical, strings.Join(group.Variants, ", ")})
	}

	table.Render()
	fmt.Fprintf(w, "\n  country trim cutset: %q\n", doc.CountryTrimCutset)
}
