package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	nearbyLat    float64
	nearbyLon    float64
	nearbyFormat string
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Scan for commercial opportunities around a coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if nearbyLat < -90 || nearbyLat > 90 || nearbyLon < -180 || nearbyLon > 180 {
			return eris.New("latitude must be within [-90, 90] and longitude within [-180, 180]")
		}
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return printAs(cmd.OutOrStdout(), nearbyFormat, a.Nearby.FindNearby(ctx, nearbyLat, nearbyLon))
	},
}

func init() {
	nearbyCmd.Flags().Float64Var(&nearbyLat, "lat", 0, "latitude")
	nearbyCmd.Flags().Float64Var(&nearbyLon, "lon", 0, "longitude")
	nearbyCmd.Flags().StringVarP(&nearbyFormat, "output", "o", "json", "output format: json or yaml")
	_ = nearbyCmd.MarkFlagRequired("lat")
	_ = nearbyCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(nearbyCmd)
}
