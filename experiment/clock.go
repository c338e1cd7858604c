package experiment

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sergev/libet/frameclock"
	"github.com/sergev/libet/screen"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Measure the display frame rate",
	Long:  "Measure the frame rate of the terminal display and show the dot step for every experiment.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		profile, err := conf.GetProfile(profileName)
		if err != nil {
			cobra.CheckErr(err)
		}
		term, err := screen.OpenTerminal(conf.Display.RefreshHz)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to open display: %w", err))
		}
		clock, err := frameclock.Measure(context.Background(), term, conf.Display.FrameSamples, profile.FullRotation)
		term.Close()
		if err != nil {
			cobra.CheckErr(err)
		}

		fmt.Printf("Frame Rate: %.2f Hz\n", clock.FrameRateHz)
		fmt.Printf("Frame Period: %v\n", clock.FramePeriod)
		for _, p := range conf.Profile {
			c, err := frameclock.New(clock.FrameRateHz, p.FullRotation)
			if err != nil {
				cobra.CheckErr(err)
			}
			fmt.Printf("Experiment %s: %s, %.0f frames per rotation\n", p.Name, c, c.FramesPerRotation())
		}
	},
}

func init() {
	rootCmd.AddCommand(clockCmd)
}
