// Package cmd wires the layoffscrub command tree: clean runs the
// normalizer pipeline, analyze and inspect read the local store, rules
// manages the cleaning rules, publish pushes the cleaned table to the
// warehouse and setup writes the initial configuration.
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"layoffscrub/internal/config"
	"layoffscrub/internal/logging"
	"layoffscrub/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "layoffscrub",
	Short: "Clean and analyze layoff datasets",
	Long: `Layoffscrub normalizes raw layoff datasets: it removes duplicate
records, backfills and canonicalizes industry labels, trims country
punctuation, coerces date text into calendar dates and prunes rows that
carry no layoff figures. The raw snapshot and the cleaned table are kept
side by side in a local store, ready for analysis or publishing.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(viper.GetString("logging.level"))
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig makes the config file and LAYOFFSCRUB_* environment
// variables visible to viper. Resolution order for any key is flag,
// then environment, then config file, then the flag default.
func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(config.GetConfigPath())

	viper.SetEnvPrefix("LAYOFFSCRUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults apply
	}
}
