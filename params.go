package geopolygonize

// Params are the user-inputtable parameters of a run. The zero values of
// optional fields select the documented defaults; DefaultParams returns
// the set the CLI starts from.
type Params struct {
	// InputFile is the source raster path.
	InputFile string `yaml:"input_file"`
	// OutputFile is the destination vector layer path.
	OutputFile string `yaml:"output_file"`
	// LabelName is the attribute name each pixel value is written under.
	LabelName string `yaml:"label_name"`
	// MinBlobSize is the minimum number of pixels a blob can have and
	// not be filtered out; 0 disables cleaning.
	MinBlobSize int `yaml:"min_blob_size"`
	// PixelSize overrides the pixel size in units of the input's
	// coordinate reference system; 0 infers it from the raster.
	PixelSize float64 `yaml:"pixel_size"`
	// SimplificationPixelWindow scales the simplification tolerance
	// relative to the pixel size.
	SimplificationPixelWindow float64 `yaml:"simplification_pixel_window"`
	// SmoothingIterations is the number of corner-cutting refinements.
	SmoothingIterations int `yaml:"smoothing_iterations"`
	// TileSize is the tile edge in pixels; 0 auto-picks.
	TileSize int `yaml:"tile_size"`
	// TileDir is the working directory for runs that store tiles on disk;
	// runs with the memory store do not use it. Existing tiles are not
	// recreated, which is what makes re-runs resume. Empty means an
	// ephemeral temporary directory.
	TileDir string `yaml:"tile_dir"`
	// Workers is the number of parallel workers; 0 uses all CPUs.
	Workers int `yaml:"workers"`
	// Debug forces the disk store and keeps the working directory.
	Debug bool `yaml:"debug"`
}

// DefaultParams returns the defaults the CLI and settings files start
// from.
func DefaultParams() Params {
	return Params{
		LabelName:                 "label",
		MinBlobSize:               5,
		SimplificationPixelWindow: 1,
		SmoothingIterations:       0,
		TileSize:                  0,
		Workers:                   1,
	}
}

// Validate checks every parameter before any tile is scheduled.
func (p *Params) Validate() error {
	if p.InputFile == "" {
		return &ConfigError{Field: "input", Reason: "input file is required"}
	}
	if p.OutputFile == "" {
		return &ConfigError{Field: "output", Reason: "output file is required"}
	}
	if p.MinBlobSize < 0 {
		return &ConfigError{Field: "min-blob-size", Reason: "value must be non-negative"}
	}
	if p.PixelSize < 0 {
		return &ConfigError{Field: "pixel-size", Reason: "value must be non-negative"}
	}
	if p.SimplificationPixelWindow < 0 {
		return &ConfigError{Field: "simplification-pixel-window", Reason: "value must be non-negative"}
	}
	if p.SmoothingIterations < 0 {
		return &ConfigError{Field: "smoothing-iterations", Reason: "value must be non-negative"}
	}
	if p.TileSize < 0 {
		return &ConfigError{Field: "tile-size", Reason: "value must be non-negative"}
	}
	if p.Workers < 0 {
		return &ConfigError{Field: "workers", Reason: "value must be non-negative"}
	}
	if p.LabelName == "" {
		p.LabelName = "label"
	}
	return nil
}
