package tiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"

	"github.com/rainflame/geopolygonize/raster"
	"github.com/rainflame/geopolygonize/vector"
)

func testPipelineParams(w, h int) PipelineParameters {
	return PipelineParameters{
		Width:     w,
		Height:    h,
		Transform: raster.Identity(),
	}
}

func fillGrid(g *raster.Grid, v int32) *raster.Grid {
	g.Fill(v)
	return g
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	pp := testPipelineParams(10, 10)
	store := NewMemoryStore(pp, 5)
	step := StepParameters{Name: "input", DataType: RasterType}
	tile := TileParameters{StartX: 0, StartY: 0, Width: 5, Height: 5}

	if store.Has(step, tile) {
		t.Fatalf("empty store should not have the tile")
	}
	if _, ok, _ := store.Get(step, tile); ok {
		t.Fatalf("empty store returned a tile")
	}

	g := fillGrid(raster.NewGrid(5, 5, raster.Identity()), 7)
	if err := store.Save(step, tile, RasterPayload{g}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !store.Has(step, tile) {
		t.Fatalf("store should have the tile after save")
	}
	payload, ok, err := store.Get(step, tile)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got := payload.(RasterPayload).Grid.At(2, 2); got != 7 {
		t.Fatalf("tile value = %d, want 7", got)
	}
}

func TestRegionAssembly(t *testing.T) {
	pp := testPipelineParams(10, 10)
	store := NewMemoryStore(pp, 5)
	step := StepParameters{Name: "input", DataType: RasterType}

	// four 5x5 tiles with distinct values
	values := map[[2]int]int32{
		{0, 0}: 1, {0, 5}: 2, {5, 0}: 3, {5, 5}: 4,
	}
	for start, v := range values {
		tile := TileParameters{StartX: start[0], StartY: start[1], Width: 5, Height: 5}
		g := fillGrid(raster.NewGrid(5, 5, raster.Identity()), v)
		if err := store.Save(step, tile, RasterPayload{g}); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	// a region straddling all four tiles
	region := TileParameters{StartX: 3, StartY: 3, Width: 4, Height: 4}
	got, err := store.GetRegion(step, region)
	if err != nil {
		t.Fatalf("GetRegion() error: %v", err)
	}
	ttable := []struct {
		x, y int
		want int32
	}{
		{0, 0, 1}, // (3,3) in tile (0,0)
		{0, 3, 2}, // (3,6) in tile (0,5)
		{3, 0, 3}, // (6,3) in tile (5,0)
		{3, 3, 4}, // (6,6) in tile (5,5)
	}
	for _, tt := range ttable {
		if got.At(tt.x, tt.y) != tt.want {
			t.Fatalf("region (%d,%d) = %d, want %d", tt.x, tt.y, got.At(tt.x, tt.y), tt.want)
		}
	}
}

func TestRegionOfVectorStepFails(t *testing.T) {
	pp := testPipelineParams(10, 10)
	store := NewMemoryStore(pp, 5)
	step := StepParameters{Name: "polygonize", DataType: VectorType}
	if _, err := store.GetRegion(step, TileParameters{Width: 2, Height: 2}); err == nil {
		t.Fatalf("GetRegion on a vector step should fail")
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pp := testPipelineParams(8, 8)
	store := NewDiskStore(dir, pp, 4)

	rstep := StepParameters{Name: "clean", DataType: RasterType}
	tile := TileParameters{StartX: 4, StartY: 0, Width: 4, Height: 4}
	g := fillGrid(raster.NewGrid(4, 4, raster.Identity()), 9)
	if err := store.Save(rstep, tile, RasterPayload{g}); err != nil {
		t.Fatalf("Save raster: %v", err)
	}

	// the artifact follows the documented naming scheme
	want := filepath.Join(dir, "clean-tile_4-0_4-4.npy")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected artifact %s: %v", want, err)
	}

	payload, ok, err := store.Get(rstep, tile)
	if err != nil || !ok {
		t.Fatalf("Get raster = %v, %v", ok, err)
	}
	if got := payload.(RasterPayload).Grid.At(1, 1); got != 9 {
		t.Fatalf("raster value = %d, want 9", got)
	}

	vstep := StepParameters{Name: "vectorize", DataType: VectorType}
	fs := vector.NewFeatureSet(
		[]orb.Polygon{{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}},
		[]int32{3},
	)
	if err := store.Save(vstep, tile, VectorPayload{fs}); err != nil {
		t.Fatalf("Save vector: %v", err)
	}
	payload, ok, err = store.Get(vstep, tile)
	if err != nil || !ok {
		t.Fatalf("Get vector = %v, %v", ok, err)
	}
	if got := payload.(VectorPayload).FeatureSet.Len(); got != 1 {
		t.Fatalf("feature count = %d, want 1", got)
	}

	count := 0
	err = store.ForEach(vstep, func(tp TileParameters, _ Payload) error {
		if tp != tile {
			t.Fatalf("ForEach tile = %v, want %v", tp, tile)
		}
		count++
		return nil
	})
	if err != nil || count != 1 {
		t.Fatalf("ForEach visited %d tiles, err %v", count, err)
	}
}

func TestPipelineResumeSkipsExistingTiles(t *testing.T) {
	pp := testPipelineParams(8, 8)
	pp.TileSize = 4
	pp.Workers = 1

	var invocations int32
	step := Step{
		Params: StepParameters{Name: "count", DataType: RasterType},
		Fn: func(tile TileParameters, helper *StepHelper) error {
			atomic.AddInt32(&invocations, 1)
			g := raster.NewGrid(4, 4, raster.Identity())
			return helper.SaveCurrTile(tile, RasterPayload{g})
		},
	}
	unionCalls := 0
	union := func(helper *StepHelper) error {
		unionCalls++
		return nil
	}

	p, err := NewPipeline([]Step{step}, union, pp)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	// pre-populate one tile: the executor must skip it
	pre := TileParameters{StartX: 0, StartY: 0, Width: 4, Height: 4}
	if err := p.store.Save(step.Params, pre, RasterPayload{raster.NewGrid(4, 4, raster.Identity())}); err != nil {
		t.Fatalf("pre-save: %v", err)
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if invocations != 3 { // 4 tiles, 1 pre-populated
		t.Fatalf("step ran %d times, want 3", invocations)
	}
	if unionCalls != 1 {
		t.Fatalf("union ran %d times, want 1", unionCalls)
	}
}

func TestPipelineFaultIsolation(t *testing.T) {
	pp := testPipelineParams(8, 8)
	pp.TileSize = 4
	pp.Workers = 1
	logDir := t.TempDir()
	pp.LogDir = logDir

	step := Step{
		Params: StepParameters{Name: "flaky", DataType: RasterType},
		Fn: func(tile TileParameters, helper *StepHelper) error {
			if tile.StartX == 0 && tile.StartY == 0 {
				return errors.New("boom")
			}
			return helper.SaveCurrTile(tile, RasterPayload{raster.NewGrid(4, 4, raster.Identity())})
		},
	}
	saved := 0
	union := func(helper *StepHelper) error {
		return helper.GetPrevTiles(func(TileParameters, Payload) error {
			saved++
			return nil
		})
	}

	p, err := NewPipeline([]Step{step}, union, pp)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run should tolerate per-tile faults, got %v", err)
	}
	if saved != 3 {
		t.Fatalf("%d tiles survived, want 3", saved)
	}

	// the fault went to a worker log
	entries, err := os.ReadDir(logDir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected a worker log file, got %v (%v)", entries, err)
	}
}

func TestPipelineCancellation(t *testing.T) {
	pp := testPipelineParams(8, 8)
	pp.TileSize = 4
	pp.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before the run starts

	step := Step{
		Params: StepParameters{Name: "never", DataType: RasterType},
		Fn: func(tile TileParameters, helper *StepHelper) error {
			t.Fatalf("step must not run after cancellation")
			return nil
		},
	}
	union := func(helper *StepHelper) error {
		t.Fatalf("union must not run after cancellation")
		return nil
	}

	p, err := NewPipeline([]Step{step}, union, pp)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if err := p.Run(ctx); !errors.Is(err, ErrCleanExit) {
		t.Fatalf("Run = %v, want ErrCleanExit", err)
	}
}

func TestTileParamsFromFile(t *testing.T) {
	ttable := []struct {
		path string
		want TileParameters
		ok   bool
	}{
		{"clean-tile_0-0_100-100.npy", TileParameters{0, 0, 100, 100}, true},
		{"vectorize-tile_300-200_100-50.shp", TileParameters{300, 200, 100, 50}, true},
		{"final.shp", TileParameters{}, false},
	}
	for _, tt := range ttable {
		got, ok := tileParamsFromFile(tt.path)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("tileParamsFromFile(%q) = %v, %v; want %v, %v",
				tt.path, got, ok, tt.want, tt.ok)
		}
	}
}
