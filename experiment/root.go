// Package experiment implements the libet command line.
package experiment

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sergev/libet/config"
	"github.com/sergev/libet/logger"
)

var (
	configPath  string
	profileName string
	logLevel    string
	logFile     string

	conf *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "libet",
	Short: "A Libet clock experiment runner",
	Long: "The libet tool runs Libet clock experiments: a dot rotates around a dial,\n" +
		"the participant acts when they feel like it, then reports where the dot\n" +
		"was at the moment they first felt the intention to act.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := logger.Configure(logLevel, logFile)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to open log file: %w", err))
		}

		// Initialize configuration
		conf, err = config.Load(configPath)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load config: %w", err))
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "configuration file (default ~/.libet)")
	flags.StringVarP(&profileName, "profile", "p", "", "experiment profile (default from configuration)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFile, "log-file", "", "write log to file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
