package tiler

import (
	"fmt"
	"math"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
)

const (
	minTileSize = 10
	maxTileSize = 1000

	// maxMemoryUnits bounds num_pixels * num_steps for the in-memory
	// store; larger runs spill to disk.
	maxMemoryUnits = 1e8
)

// StoreKind selects the tile store backend.
type StoreKind int

const (
	StoreMemory StoreKind = iota
	StoreDisk
)

// Config is the resolved execution configuration of one run: worker count,
// tile size, store backend and the directories the run writes to.
type Config struct {
	Parallel    bool
	Independent bool
	Workers     int
	StoreKind   StoreKind
	TileSize    int
	WorkDir     string
	KeepWorkDir bool
	LogDir      string
}

// NewConfig resolves the run configuration from the pipeline parameters
// and the step list. Tiles are independent when no step reads regions of
// its predecessor; only then may parallel workers share the in-memory
// store, each tile running end-to-end in its own worker.
func NewConfig(pp PipelineParameters, steps []Step) (*Config, error) {
	c := &Config{}

	c.Workers = pp.Workers
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	c.Parallel = c.Workers > 1

	c.TileSize = pp.TileSize
	if c.TileSize == 0 {
		auto := int(math.Round(math.Sqrt(
			float64(pp.Width) * float64(pp.Height) / float64(c.Workers))))
		if auto < minTileSize {
			auto = minTileSize
		}
		if auto > maxTileSize {
			auto = maxTileSize
		}
		c.TileSize = auto
		log.Infof("using tile size %d", c.TileSize)
	}

	usesRegion := false
	for _, s := range steps {
		if s.Params.UsesRegion {
			usesRegion = true
		}
	}

	units := float64(pp.Width) * float64(pp.Height) * float64(len(steps))
	switch {
	case pp.Debug:
		c.StoreKind = StoreDisk
		c.KeepWorkDir = true
		log.Info("using debug configuration")
	case units > maxMemoryUnits:
		// The data cannot be fully stored in memory, so spill to disk.
		c.StoreKind = StoreDisk
		log.Info("using large configuration")
	case c.Parallel && !usesRegion:
		c.StoreKind = StoreMemory
		c.Independent = true
		log.Info("using independent configuration")
	case c.Parallel:
		// Parallel workers must not share live in-memory tiles across
		// step boundaries.
		c.StoreKind = StoreDisk
		log.Info("using standard disk configuration")
	default:
		c.StoreKind = StoreMemory
		log.Info("using standard configuration")
	}

	if c.StoreKind == StoreDisk {
		c.WorkDir = pp.WorkDir
		if c.WorkDir == "" {
			dir, err := os.MkdirTemp("", "geopolygonize-tiles-")
			if err != nil {
				return nil, fmt.Errorf("create working directory: %w", err)
			}
			c.WorkDir = dir
		} else {
			if err := os.MkdirAll(c.WorkDir, 0o755); err != nil {
				return nil, fmt.Errorf("create working directory: %w", err)
			}
			// a caller-provided directory is theirs to keep
			c.KeepWorkDir = true
		}
		log.Infof("working directory: %s", c.WorkDir)
	}

	c.LogDir = pp.LogDir
	if c.LogDir == "" {
		dir, err := os.MkdirTemp("", "geopolygonize-logs-")
		if err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		c.LogDir = dir
	} else if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	log.Infof("logs directory: %s", c.LogDir)

	if c.Parallel {
		log.Infof("using %d workers", c.Workers)
	}
	return c, nil
}
