package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	gpz "github.com/rainflame/geopolygonize"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the raster to polygons pipeline",
	Long: `Run the full pipeline on an input raster and write the dissolved
polygon layer. Settings come from flags, optionally seeded from a YAML
settings file; flags override file values. A partially completed run
pointed at the same tile directory resumes from the first missing tile.`,
	Run: doRun,
}

var cfgVal string

func init() {
	RootCmd.AddCommand(runCmd)

	defaults := gpz.DefaultParams()
	runCmd.Flags().StringVar(&cfgVal, "config", "", "settings file (YAML)")
	runCmd.Flags().String("input", "", "input raster file (required unless set in config)")
	runCmd.Flags().String("output", "", "output vector file (required unless set in config)")
	runCmd.Flags().String("label-name", defaults.LabelName, "attribute name for pixel values")
	runCmd.Flags().Int("min-blob-size", defaults.MinBlobSize, "minimum pixels a blob keeps; 0 disables cleaning")
	runCmd.Flags().Float64("pixel-size", defaults.PixelSize, "pixel size override; 0 infers from the raster")
	runCmd.Flags().Float64("simplification-pixel-window", defaults.SimplificationPixelWindow, "simplification tolerance in pixels")
	runCmd.Flags().Int("smoothing-iterations", defaults.SmoothingIterations, "smoothing refinement count")
	runCmd.Flags().Int("tile-size", defaults.TileSize, "tile edge in pixels; 0 auto-picks")
	runCmd.Flags().String("tile-dir", "", "tile working directory; empty uses a temporary one")
	runCmd.Flags().Int("workers", defaults.Workers, "worker count; 0 uses all CPUs")
	runCmd.Flags().Bool("debug", false, "force disk store and keep the working directory")
}

func doRun(cmd *cobra.Command, args []string) {
	params := gpz.DefaultParams()
	if cfgVal != "" {
		if err := unmarshalYAMLFile(cfgVal, &params); err != nil {
			fmt.Printf("error reading settings, %v\n", err)
			os.Exit(2)
		}
	}
	applyFlags(cmd, &params)

	g, err := gpz.New(params)
	if err != nil {
		fmt.Printf("error, %v\n", err)
		os.Exit(2)
	}

	if err := g.Run(context.Background()); err != nil {
		if gpz.IsCancelled(err) {
			fmt.Println("cancelled")
			os.Exit(1)
		}
		fmt.Printf("pipeline failed, %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("output written to '%s'\n", params.OutputFile)
}

// applyFlags copies every flag the user set (or whose default should seed
// an empty config) onto the parameters.
func applyFlags(cmd *cobra.Command, params *gpz.Params) {
	get := cmd.Flags()
	if s, _ := get.GetString("input"); s != "" || get.Changed("input") {
		params.InputFile = s
	}
	if s, _ := get.GetString("output"); s != "" || get.Changed("output") {
		params.OutputFile = s
	}
	if get.Changed("label-name") {
		params.LabelName, _ = get.GetString("label-name")
	}
	if get.Changed("min-blob-size") {
		params.MinBlobSize, _ = get.GetInt("min-blob-size")
	}
	if get.Changed("pixel-size") {
		params.PixelSize, _ = get.GetFloat64("pixel-size")
	}
	if get.Changed("simplification-pixel-window") {
		params.SimplificationPixelWindow, _ = get.GetFloat64("simplification-pixel-window")
	}
	if get.Changed("smoothing-iterations") {
		params.SmoothingIterations, _ = get.GetInt("smoothing-iterations")
	}
	if get.Changed("tile-size") {
		params.TileSize, _ = get.GetInt("tile-size")
	}
	if get.Changed("tile-dir") {
		params.TileDir, _ = get.GetString("tile-dir")
	}
	if get.Changed("workers") {
		params.Workers, _ = get.GetInt("workers")
	}
	if get.Changed("debug") {
		params.Debug, _ = get.GetBool("debug")
	}
}
