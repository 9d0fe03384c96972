package tiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

// ErrCleanExit reports a run unwound by SIGINT or SIGTERM. Workers observe
// the cancellation, log a clean exit and stop accepting work; completed
// tiles stay behind so a re-run resumes.
var ErrCleanExit = errors.New("clean exit")

// Pipeline schedules an ordered list of steps over the tile grid and
// finishes with the union function.
type Pipeline struct {
	steps []Step
	union UnionFunc
	pp    PipelineParameters
	cfg   *Config
	store Store
}

// NewPipeline resolves the execution configuration and the tile store.
func NewPipeline(steps []Step, union UnionFunc, pp PipelineParameters) (*Pipeline, error) {
	cfg, err := NewConfig(pp, steps)
	if err != nil {
		return nil, err
	}

	var store Store
	switch cfg.StoreKind {
	case StoreMemory:
		store = NewMemoryStore(pp, cfg.TileSize)
	case StoreDisk:
		store = NewDiskStore(cfg.WorkDir, pp, cfg.TileSize)
	default:
		return nil, fmt.Errorf("store kind %d is not supported", cfg.StoreKind)
	}

	return &Pipeline{steps: steps, union: union, pp: pp, cfg: cfg, store: store}, nil
}

// Config exposes the resolved configuration.
func (p *Pipeline) Config() *Config { return p.cfg }

// Run executes every step over every tile, then the union. SIGINT and
// SIGTERM unwind the run cooperatively with ErrCleanExit. The union's
// failure is fatal; per-tile faults are logged and skipped.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tiles := p.generateTiles()

	var err error
	if p.cfg.Independent {
		err = p.runIndependent(ctx, tiles)
	} else {
		err = p.runStepwise(ctx, tiles)
	}
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		log.Infof("[%d] clean exit", os.Getpid())
		return ErrCleanExit
	}

	last := p.steps[len(p.steps)-1].Params
	helper := newStepHelper(p.store, nil, &last, p.cfg.LogDir)
	if err := p.union(helper); err != nil {
		helper.handleFault(0, nil, err)
		return fmt.Errorf("union failed: %w", err)
	}

	if p.cfg.StoreKind == StoreDisk && !p.cfg.KeepWorkDir {
		log.Infof("removing working directory: %s", p.cfg.WorkDir)
		if err := os.RemoveAll(p.cfg.WorkDir); err != nil {
			log.Warnf("could not remove working directory: %v", err)
		}
	}
	return nil
}

// generateTiles partitions the raster into the fixed tile grid. Tile
// parameters carry the nominal size; step functions clip against the
// raster bounds themselves.
func (p *Pipeline) generateTiles() []TileParameters {
	var tiles []TileParameters
	for x := 0; x < p.pp.Width; x += p.cfg.TileSize {
		for y := 0; y < p.pp.Height; y += p.cfg.TileSize {
			tiles = append(tiles, TileParameters{
				StartX: x, StartY: y,
				Width: p.cfg.TileSize, Height: p.cfg.TileSize,
			})
		}
	}
	return tiles
}

// runStepwise materializes each step over all tiles before the next step
// begins, which is what makes GetPrevRegion safe.
func (p *Pipeline) runStepwise(ctx context.Context, tiles []TileParameters) error {
	var prev *StepParameters
	for i := range p.steps {
		step := p.steps[i]
		helper := newStepHelper(p.store, &step.Params, prev, p.cfg.LogDir)

		bar := progressbar.Default(int64(len(tiles)),
			fmt.Sprintf("[%s] processing tiles", step.Params.Name))
		if p.cfg.Parallel {
			p.parallelProcess(ctx, tiles, step, helper, bar)
		} else {
			p.serialProcess(ctx, tiles, step, helper, bar)
		}
		_ = bar.Finish()

		if ctx.Err() != nil {
			return nil // Run reports the clean exit
		}
		prev = &p.steps[i].Params
	}
	return nil
}

// runIndependent runs all steps end-to-end per tile in parallel workers.
// Steps must not read regions; the configuration only selects this mode
// when none does.
func (p *Pipeline) runIndependent(ctx context.Context, tiles []TileParameters) error {
	bar := progressbar.Default(int64(len(tiles)), "processing tiles")
	defer func() { _ = bar.Finish() }()

	tileCh := make(chan TileParameters)
	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for tile := range tileCh {
				if ctx.Err() != nil {
					p.logCleanExit(workerID)
					return
				}
				p.runTileAllSteps(tile, workerID)
				_ = bar.Add(1)
			}
		}(w)
	}

	p.feed(ctx, tileCh, tiles)
	wg.Wait()
	return nil
}

// runTileAllSteps pushes one tile through every step against the shared
// store. Within the tile the steps are strictly sequential.
func (p *Pipeline) runTileAllSteps(tile TileParameters, workerID int) {
	var prev *StepParameters
	for i := range p.steps {
		step := p.steps[i]
		helper := newStepHelper(p.store, &step.Params, prev, p.cfg.LogDir)
		if !helper.HasCurrTile(tile) {
			p.invoke(step, tile, helper, workerID)
		}
		prev = &p.steps[i].Params
	}
}

func (p *Pipeline) parallelProcess(ctx context.Context, tiles []TileParameters, step Step, helper *StepHelper, bar *progressbar.ProgressBar) {
	tileCh := make(chan TileParameters)
	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for tile := range tileCh {
				if ctx.Err() != nil {
					p.logCleanExit(workerID)
					return
				}
				if !helper.HasCurrTile(tile) {
					p.invoke(step, tile, helper, workerID)
				}
				_ = bar.Add(1)
			}
		}(w)
	}

	p.feed(ctx, tileCh, tiles)
	wg.Wait()
}

func (p *Pipeline) serialProcess(ctx context.Context, tiles []TileParameters, step Step, helper *StepHelper, bar *progressbar.ProgressBar) {
	for _, tile := range tiles {
		if ctx.Err() != nil {
			p.logCleanExit(0)
			return
		}
		if !helper.HasCurrTile(tile) {
			p.invoke(step, tile, helper, 0)
		}
		_ = bar.Add(1)
	}
}

// invoke runs one (step, tile) unit, catching panics and recording any
// fault in the worker's log file.
func (p *Pipeline) invoke(step Step, tile TileParameters, helper *StepHelper, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			helper.handleFault(workerID, &tile, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := step.Fn(tile, helper); err != nil {
		helper.handleFault(workerID, &tile, err)
	}
}

func (p *Pipeline) feed(ctx context.Context, tileCh chan<- TileParameters, tiles []TileParameters) {
	defer close(tileCh)
	for _, tile := range tiles {
		select {
		case tileCh <- tile:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) logCleanExit(workerID int) {
	helper := newStepHelper(p.store, nil, nil, p.cfg.LogDir)
	helper.workerLog(workerID, "clean exit")
}
