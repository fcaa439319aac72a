package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"layoffscrub/internal/config"
	"layoffscrub/internal/creds"
	"layoffscrub/internal/ui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write the initial configuration",
	Long: `Setup walks through the local store, cleaning rules and warehouse
settings and writes them to the config file. The warehouse password is
stored in the OS keychain, never in the config file.`,
	Run: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	ui.ShowHeader("layoffscrub setup")

	if config.Exists() {
		overwrite, err := ui.Confirm("Configuration already exists. Overwrite it?", false)
		if err != nil || !overwrite {
			ui.ShowWarning("Setup cancelled")
			return
		}
	}

	cfg := config.Default()

	ui.PrintSection("Local store")
	storePath, err := ui.RequiredInput("Local store path:", cfg.Store.Path)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	cfg.Store.Path = storePath

	policy, err := ui.Select("When a date cell does not parse:", []string{"abort", "null"}, cfg.Cleaning.OnMalformedDate)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	cfg.Cleaning.OnMalformedDate = policy

	ui.PrintSection("Cleaning rules")
	rulesPath, err := ui.RequiredInput("Cleaning rules file:", cfg.Rules.Path)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	cfg.Rules.Path = rulesPath

	gitURL, err := ui.Input("Rules Git repository (optional):", "")
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	cfg.Rules.GitURL = gitURL
	if gitURL != "" {
		branch, err := ui.Input("Rules repository branch:", cfg.Rules.Branch)
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		cfg.Rules.Branch = branch
	}

	configureWarehouse, err := ui.Confirm("Configure a Snowflake warehouse for publishing?", false)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if configureWarehouse {
		ui.PrintSection("Warehouse")

		warehouseQs := []*survey.Question{
			{
				Name: "account",
				Prompt: &survey.Input{
					Message: "Snowflake account (e.g. xy12345.eu-west-1):",
				},
				Validate: survey.Required,
			},
			{
				Name: "username",
				Prompt: &survey.Input{
					Message: "Username:",
				},
				Validate: survey.Required,
			},
			{
				Name: "role",
				Prompt: &survey.Input{
					Message: "Role:",
					Default: "LOADER",
				},
				Validate: survey.Required,
			},
			{
				Name: "warehouse",
				Prompt: &survey.Input{
					Message: "Warehouse:",
					Default: "COMPUTE_WH",
				},
				Validate: survey.Required,
			},
			{
				Name: "database",
				Prompt: &survey.Input{
					Message: "Target database:",
				},
				Validate: survey.Required,
			},
			{
				Name: "schema",
				Prompt: &survey.Input{
					Message: "Target schema:",
					Default: "PUBLIC",
				},
				Validate: survey.Required,
			},
			{
				Name: "table",
				Prompt: &survey.Input{
					Message: "Target table:",
					Default: "LAYOFFS_CLEAN",
				},
				Validate: survey.Required,
			},
		}

		if err := survey.Ask(warehouseQs, &cfg.Warehouse); err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}

		password, err := ui.Password("Warehouse password:")
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}

		manager, err := creds.NewManager()
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		if err := manager.Set(creds.PasswordKey(cfg.Warehouse), password); err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		ui.ShowSuccess("Warehouse password stored in the keychain")
	}

	if err := config.Save(cfg); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowSuccess(fmt.Sprintf("Configuration saved to %s", config.GetConfigFile()))
	fmt.Println()
	fmt.Println("Clean a dataset with: layoffscrub clean <input.csv>")
	if !configureWarehouse {
		fmt.Println("Run setup again to configure a warehouse for publishing")
	}
}
