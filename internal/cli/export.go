package cli

import (
	"github.com/spf13/cobra"

	"swell-alerts/internal/app"
)

var exportOpts app.ExportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch a spot's forecast series and export it as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), exportOpts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOpts.SpotID, "spot", "", "Spot identifier")
	exportCmd.Flags().Float64Var(&exportOpts.Latitude, "lat", 0, "Spot latitude")
	exportCmd.Flags().Float64Var(&exportOpts.Longitude, "lon", 0, "Spot longitude")
	exportCmd.Flags().StringVar(&exportOpts.PNGPath, "png", "", "Write a PNG chart to this path")
	exportCmd.Flags().StringVar(&exportOpts.CSVPath, "csv", "", "Write a CSV file to this path")
}
