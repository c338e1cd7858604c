package experiment

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sergev/libet/trigger"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List trigger devices",
	Long:  "List serial ports and USB devices, and check the configured trigger device.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := trigger.ListPorts()
		if err != nil {
			cobra.CheckErr(err)
		}
		fmt.Printf("Serial Ports:\n")
		if len(ports) == 0 {
			fmt.Printf("  none\n")
		}
		for _, p := range ports {
			line := fmt.Sprintf("  %s", p.Name)
			if p.VendorID != 0 {
				line += fmt.Sprintf(" (VID=0x%04X PID=0x%04X)", p.VendorID, p.ProductID)
			}
			if p.Driver != "" {
				line += fmt.Sprintf(" driver %s", p.Driver)
			}
			fmt.Println(line)
		}

		usb, err := trigger.ListUSB()
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		fmt.Printf("\nUSB Devices:\n")
		if len(usb) == 0 {
			fmt.Printf("  none\n")
		}
		for _, d := range usb {
			fmt.Printf("  bus %d address %d: VID=0x%04X PID=0x%04X driver %s\n",
				d.Bus, d.Address, d.VendorID, d.ProductID, d.Driver)
		}

		fmt.Printf("\nTrigger: ")
		if conf.Trigger.Port == "" {
			fmt.Printf("not configured\n")
			return
		}
		fmt.Printf("%s on %s\n", conf.Trigger.Driver, conf.Trigger.Port)
		dev, err := trigger.Open(conf.Trigger.Driver, trigger.Options{
			Port:  conf.Trigger.Port,
			Baud:  conf.Trigger.Baud,
			Pulse: conf.Trigger.Pulse,
		})
		if err != nil {
			cobra.CheckErr(err)
		}
		defer dev.Close()
		dev.PrintStatus()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
