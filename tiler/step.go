package tiler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rainflame/geopolygonize/raster"
)

// StepHelper binds a step function to the tile store: it answers reads
// against the previous step and writes for the current one. The union
// function receives a helper with no current step.
type StepHelper struct {
	store  Store
	curr   *StepParameters
	prev   *StepParameters
	logDir string
}

func newStepHelper(store Store, curr, prev *StepParameters, logDir string) *StepHelper {
	return &StepHelper{store: store, curr: curr, prev: prev, logDir: logDir}
}

// HasCurrTile reports whether this step already produced the tile; the
// executor short-circuits such tiles, which is what makes re-runs resume.
func (h *StepHelper) HasCurrTile(tile TileParameters) bool {
	if h.curr == nil {
		return false
	}
	return h.store.Has(*h.curr, tile)
}

// SaveCurrTile stores the tile's output for the current step.
func (h *StepHelper) SaveCurrTile(tile TileParameters, data Payload) error {
	if h.curr == nil {
		return fmt.Errorf("no current step")
	}
	return h.store.Save(*h.curr, tile, data)
}

// GetPrevTile reads the previous step's output for the tile. Absence is
// not an error; the caller decides whether it is fatal.
func (h *StepHelper) GetPrevTile(tile TileParameters) (Payload, bool, error) {
	if h.prev == nil {
		return nil, false, fmt.Errorf("no previous step")
	}
	return h.store.Get(*h.prev, tile)
}

// GetPrevRegion assembles an arbitrary pixel rectangle of the previous
// step's output, reading every stored tile that overlaps it.
func (h *StepHelper) GetPrevRegion(region TileParameters) (*raster.Grid, error) {
	if h.prev == nil {
		return nil, fmt.Errorf("no previous step")
	}
	return h.store.GetRegion(*h.prev, region)
}

// GetPrevTiles streams all tiles of the previous step.
func (h *StepHelper) GetPrevTiles(fn func(TileParameters, Payload) error) error {
	if h.prev == nil {
		return fmt.Errorf("no previous step")
	}
	return h.store.ForEach(*h.prev, fn)
}

// handleFault records a per-tile failure in this worker's log file. Tile
// faults are isolated: the pipeline moves on to other tiles.
func (h *StepHelper) handleFault(workerID int, tile *TileParameters, err error) {
	stepMsg := ""
	if h.curr != nil {
		stepMsg = fmt.Sprintf(" in %s", h.curr.Name)
	}
	tileMsg := ""
	if tile != nil {
		tileMsg = fmt.Sprintf(" at (%d, %d)", tile.StartX, tile.StartY)
	}
	h.workerLog(workerID, fmt.Sprintf("fault%s%s: %v", stepMsg, tileMsg, err))
}

func (h *StepHelper) workerLog(workerID int, msg string) {
	line := fmt.Sprintf("[%s] [worker %d] %s\n",
		time.Now().Format(time.RFC3339), workerID, msg)
	path := filepath.Join(h.logDir, fmt.Sprintf("log-%d", workerID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}
