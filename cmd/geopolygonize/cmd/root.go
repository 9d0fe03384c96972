package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "geopolygonize",
	Short: "convert categorical rasters to simplified vector polygons",
	Long: `geopolygonize converts a categorical geographic raster into a set of
simplified, smoothed polygons suitable for cartographic rendering:
	- clean small blobs out of the raster,
	- polygonize per tile and simplify/smooth without opening gaps
	  between neighboring polygons,
	- dissolve by label into one output feature per class,
	- tweak runs with settings files (YAML).`,
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
