package tiler

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/rainflame/geopolygonize/raster"
	"github.com/rainflame/geopolygonize/vector"
)

// TileIOError reports a working-directory read or write failure.
type TileIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *TileIOError) Error() string {
	return fmt.Sprintf("tile io: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TileIOError) Unwrap() error { return e.Err }

// Store persists step artifacts keyed by (step, tile) and assembles
// raster regions spanning several tiles. Readers tolerate missing tiles
// and report them as absent; callers decide whether absence is fatal.
type Store interface {
	Has(step StepParameters, tile TileParameters) bool
	Save(step StepParameters, tile TileParameters, data Payload) error
	Get(step StepParameters, tile TileParameters) (Payload, bool, error)
	GetRegion(step StepParameters, region TileParameters) (*raster.Grid, error)
	// ForEach streams every stored (tile, data) pair of the step.
	ForEach(step StepParameters, fn func(TileParameters, Payload) error) error
}

// assembleRegion builds a rectangle by copying the overlap of every stored
// tile into the right relative offset of a zero-filled grid.
func assembleRegion(s Store, pp PipelineParameters, tileSize int, step StepParameters, region TileParameters) (*raster.Grid, error) {
	if step.DataType != RasterType {
		return nil, fmt.Errorf("get region only works on raster-typed steps, not %s", step.DataType)
	}

	data := raster.NewGrid(region.Width, region.Height,
		pp.Transform.Translate(float64(region.StartY), float64(region.StartX)))

	regionEndX := region.StartX + region.Width
	regionEndY := region.StartY + region.Height

	for startX := 0; startX < pp.Width; startX += tileSize {
		if startX+tileSize < region.StartX {
			continue
		}
		if startX >= regionEndX {
			break
		}
		for startY := 0; startY < pp.Height; startY += tileSize {
			if startY+tileSize < region.StartY {
				continue
			}
			if startY >= regionEndY {
				break
			}

			tile := TileParameters{StartX: startX, StartY: startY, Width: tileSize, Height: tileSize}
			payload, ok, err := s.Get(step, tile)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			grid := payload.(RasterPayload).Grid

			// clip the tile and region rectangles against each other
			tileStartX, dataStartX := 0, startX-region.StartX
			if startX < region.StartX {
				tileStartX, dataStartX = region.StartX-startX, 0
			}
			tileStartY, dataStartY := 0, startY-region.StartY
			if startY < region.StartY {
				tileStartY, dataStartY = region.StartY-startY, 0
			}
			tileEndX := grid.Width
			if startX+grid.Width > regionEndX {
				tileEndX = regionEndX - startX
			}
			tileEndY := grid.Height
			if startY+grid.Height > regionEndY {
				tileEndY = regionEndY - startY
			}

			for x := tileStartX; x < tileEndX; x++ {
				for y := tileStartY; y < tileEndY; y++ {
					data.Set(dataStartX+x-tileStartX, dataStartY+y-tileStartY, grid.At(x, y))
				}
			}
		}
	}
	return data, nil
}

// MemoryStore keeps artifacts in RAM. It is used only when tiles are
// independent or when a single worker runs, preserving the discipline
// that workers communicate through durable tiles only.
type MemoryStore struct {
	mu       sync.RWMutex
	tiles    map[string]map[TileParameters]Payload
	pp       PipelineParameters
	tileSize int
}

func NewMemoryStore(pp PipelineParameters, tileSize int) *MemoryStore {
	return &MemoryStore{
		tiles:    make(map[string]map[TileParameters]Payload),
		pp:       pp,
		tileSize: tileSize,
	}
}

func (m *MemoryStore) Has(step StepParameters, tile TileParameters) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tiles[step.Name][tile]
	return ok
}

func (m *MemoryStore) Save(step StepParameters, tile TileParameters, data Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiles[step.Name] == nil {
		m.tiles[step.Name] = make(map[TileParameters]Payload)
	}
	m.tiles[step.Name][tile] = data
	return nil
}

func (m *MemoryStore) Get(step StepParameters, tile TileParameters) (Payload, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.tiles[step.Name][tile]
	return data, ok, nil
}

func (m *MemoryStore) GetRegion(step StepParameters, region TileParameters) (*raster.Grid, error) {
	return assembleRegion(m, m.pp, m.tileSize, step, region)
}

func (m *MemoryStore) ForEach(step StepParameters, fn func(TileParameters, Payload) error) error {
	m.mu.RLock()
	entries := make(map[TileParameters]Payload, len(m.tiles[step.Name]))
	for tile, data := range m.tiles[step.Name] {
		entries[tile] = data
	}
	m.mu.RUnlock()
	for tile, data := range entries {
		if err := fn(tile, data); err != nil {
			return err
		}
	}
	return nil
}

// DiskStore persists artifacts under the working directory as
// <step>-tile_<sx>-<sy>_<w>-<h>.<ext>. Writes go to a temporary name and
// are renamed into place, so readers only ever see complete tiles.
type DiskStore struct {
	workDir  string
	pp       PipelineParameters
	tileSize int
}

func NewDiskStore(workDir string, pp PipelineParameters, tileSize int) *DiskStore {
	return &DiskStore{workDir: workDir, pp: pp, tileSize: tileSize}
}

func (d *DiskStore) tilePath(step StepParameters, tile TileParameters) string {
	return filepath.Join(d.workDir, fmt.Sprintf("%s-tile_%d-%d_%d-%d.%s",
		step.Name, tile.StartX, tile.StartY, tile.Width, tile.Height,
		step.DataType.Ext()))
}

var tileFilePattern = regexp.MustCompile(
	`-tile_(\d+)-(\d+)_(\d+)-(\d+)\.[a-z]+$`)

func tileParamsFromFile(path string) (TileParameters, bool) {
	m := tileFilePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return TileParameters{}, false
	}
	sx, _ := strconv.Atoi(m[1])
	sy, _ := strconv.Atoi(m[2])
	w, _ := strconv.Atoi(m[3])
	h, _ := strconv.Atoi(m[4])
	return TileParameters{StartX: sx, StartY: sy, Width: w, Height: h}, true
}

func (d *DiskStore) Has(step StepParameters, tile TileParameters) bool {
	_, err := os.Stat(d.tilePath(step, tile))
	return err == nil
}

func (d *DiskStore) Save(step StepParameters, tile TileParameters, data Payload) error {
	path := d.tilePath(step, tile)
	switch p := data.(type) {
	case RasterPayload:
		tmp := path + ".tmp"
		if err := raster.WriteNpy(tmp, p.Grid); err != nil {
			return &TileIOError{Op: "write", Path: path, Err: err}
		}
		if err := os.Rename(tmp, path); err != nil {
			return &TileIOError{Op: "rename", Path: path, Err: err}
		}
	case VectorPayload:
		// go-shp materializes .shp/.shx/.dbf; write all three under a
		// temporary base, then rename them into place.
		tmpBase := path[:len(path)-len(".shp")] + ".tmp"
		labelName := d.pp.LabelName
		if labelName == "" {
			labelName = "label"
		}
		if err := vector.WriteShp(tmpBase+".shp", p.FeatureSet, labelName); err != nil {
			return &TileIOError{Op: "write", Path: path, Err: err}
		}
		for _, ext := range []string{".shx", ".dbf", ".shp"} {
			final := path[:len(path)-len(".shp")] + ext
			if err := os.Rename(tmpBase+ext, final); err != nil {
				return &TileIOError{Op: "rename", Path: final, Err: err}
			}
		}
	default:
		return fmt.Errorf("unsupported payload type %T", data)
	}
	return nil
}

func (d *DiskStore) Get(step StepParameters, tile TileParameters) (Payload, bool, error) {
	path := d.tilePath(step, tile)
	if _, err := os.Stat(path); err != nil {
		return nil, false, nil
	}
	return d.load(step, tile, path)
}

func (d *DiskStore) load(step StepParameters, tile TileParameters, path string) (Payload, bool, error) {
	switch step.DataType {
	case RasterType:
		transform := d.pp.Transform.Translate(float64(tile.StartY), float64(tile.StartX))
		grid, err := raster.ReadNpy(path, transform)
		if err != nil {
			return nil, false, &TileIOError{Op: "read", Path: path, Err: err}
		}
		return RasterPayload{grid}, true, nil
	case VectorType:
		fs, err := vector.ReadShp(path)
		if err != nil {
			return nil, false, &TileIOError{Op: "read", Path: path, Err: err}
		}
		return VectorPayload{fs}, true, nil
	}
	return nil, false, fmt.Errorf("unsupported data type %s", step.DataType)
}

func (d *DiskStore) GetRegion(step StepParameters, region TileParameters) (*raster.Grid, error) {
	return assembleRegion(d, d.pp, d.tileSize, step, region)
}

func (d *DiskStore) ForEach(step StepParameters, fn func(TileParameters, Payload) error) error {
	pattern := filepath.Join(d.workDir,
		fmt.Sprintf("%s-tile_*_*.%s", step.Name, step.DataType.Ext()))
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return &TileIOError{Op: "glob", Path: pattern, Err: err}
	}
	for _, path := range paths {
		tile, ok := tileParamsFromFile(path)
		if !ok {
			continue
		}
		payload, ok, err := d.load(step, tile, path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(tile, payload); err != nil {
			return err
		}
	}
	return nil
}
