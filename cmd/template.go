package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/csim/config"
)

var templateCmd = &cobra.Command{
	Use:   "template [file]",
	Short: "Validate a station template and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := config.LoadTemplate(args[0])
		if err != nil {
			return fmt.Errorf("load template: %w", err)
		}
		fmt.Printf("name: %s\n", tmpl.Name)
		fmt.Printf("model/vendor: %s / %s\n", tmpl.ChargePointModel, tmpl.ChargePointVendor)
		fmt.Printf("output: %s %gV x%d phases, %gW max\n",
			tmpl.CurrentOutType, tmpl.VoltageOut, tmpl.NumberOfPhases, tmpl.MaximumPower)
		fmt.Printf("connectors: %d (shared power: %t)\n", tmpl.NumberOfConnectors, tmpl.PowerSharedByConnectors)
		fmt.Printf("feature profiles: %v\n", tmpl.FeatureProfiles)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
}
