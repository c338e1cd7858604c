package experiment

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the configuration",
	Long:  "Show the configuration file in use and the experiments it defines.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Configuration script: %s\n", conf.Path)
		fmt.Printf("Data Directory: %s\n", conf.DataDir)
		fmt.Printf("Resolution: %g deg, %v\n", conf.Resolution.Angle, conf.Resolution.Time)
		fmt.Printf("Keys: confirm %s, quit %s\n",
			strings.Join(conf.ConfirmKeys, "/"), strings.Join(conf.QuitKeys, "/"))

		for i, p := range conf.Profile {
			mark := ""
			if p.Name == conf.Default {
				mark = " (default)"
			}
			fmt.Printf("\n%s. %s%s\n", indexToTag(i), p.Name, mark)
			fmt.Printf("  Rotation: %v, hold %v, break %v\n", p.FullRotation, p.HoldTime, p.BlockBreak)
			fmt.Printf("  Trials: %d training, %d per block\n", p.TrainingTrials, p.BlockTrials)
			fmt.Printf("  Blocks: %d training, %d main\n",
				len(p.Training())*p.TrainingRepetitions, len(p.Condition)*p.BlockRepetitions)
			for _, c := range p.Condition {
				fmt.Printf("  - %s: keys %s, codes %d/%d\n",
					c.Name, strings.Join(c.Keys, "/"), c.StartCode, c.PressCode)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
