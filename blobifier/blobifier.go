// Package blobifier removes small connected components ("blobs") of
// identically-labeled pixels from a label grid and refills them from their
// neighborhood, so that downstream polygonization does not emit speckle
// polygons.
package blobifier

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rainflame/geopolygonize/raster"
)

// ErrAllInvalid is returned when every pixel of the grid is the invalid
// sentinel, leaving the fill pass nothing to propagate from.
var ErrAllInvalid = errors.New("blobifier: grid contains no valid pixels")

// Blobifier cleans one grid. Components are 4-connected; diagonal contact
// does not join two blobs, matching the component labeling the polygonizer
// uses later.
type Blobifier struct {
	grid        *raster.Grid
	minBlobSize int
}

// New creates a blobifier for grid. minBlobSize is the smallest component
// pixel count that survives; it must be >= 1.
func New(grid *raster.Grid, minBlobSize int) *Blobifier {
	return &Blobifier{grid: grid, minBlobSize: minBlobSize}
}

// Blobify returns a cleaned copy of the grid. Every connected component of
// the result has at least minBlobSize pixels; pixels of smaller components
// are overwritten by the iterative majority fill.
func (b *Blobifier) Blobify() (*raster.Grid, error) {
	components, sizes := b.identifyBlobs()
	mask := b.maskSmallBlobs(components, sizes)
	return b.fillBlobs(mask)
}

// identifyBlobs labels each 4-connected same-value component with an id
// unique across all label values and returns per-component pixel counts.
// Component ids fit int32 because width*height < 2^31.
func (b *Blobifier) identifyBlobs() ([]int32, []int) {
	g := b.grid
	components := make([]int32, len(g.Data))
	for i := range components {
		components[i] = -1
	}
	var sizes []int

	// Iterative flood fill; recursion would overflow on large blobs.
	var stack []int
	next := int32(0)
	for seed := range g.Data {
		if components[seed] >= 0 {
			continue
		}
		value := g.Data[seed]
		id := next
		next++
		size := 0

		stack = append(stack[:0], seed)
		components[seed] = id
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++

			x, y := idx/g.Height, idx%g.Height
			for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nx, ny := x+d[0], y+d[1]
				if !g.In(nx, ny) {
					continue
				}
				nidx := nx*g.Height + ny
				if components[nidx] >= 0 || g.Data[nidx] != value {
					continue
				}
				components[nidx] = id
				stack = append(stack, nidx)
			}
		}
		sizes = append(sizes, size)
	}
	return components, sizes
}

// maskSmallBlobs returns true for pixels whose component has fewer than
// minBlobSize pixels. A component of exactly minBlobSize pixels is kept.
func (b *Blobifier) maskSmallBlobs(components []int32, sizes []int) []bool {
	mask := make([]bool, len(components))
	for i, id := range components {
		if sizes[id] < b.minBlobSize {
			mask[i] = true
		}
	}
	return mask
}

// fillBlobs sets masked pixels to the invalid sentinel and repeatedly
// replaces each sentinel pixel by the mode of its non-sentinel 3x3
// neighborhood (diagonals included; out-of-grid neighbors act as sentinel)
// until no sentinel remains. Ties pick the smallest value.
func (b *Blobifier) fillBlobs(mask []bool) (*raster.Grid, error) {
	curr := b.grid.Clone()
	for i, m := range mask {
		if m {
			curr.Data[i] = raster.Invalid
		}
	}

	remaining := 0
	for _, v := range curr.Data {
		if v == raster.Invalid {
			remaining++
		}
	}

	neighbors := make([]float64, 0, 9)
	for remaining > 0 {
		// Each pass reads the previous grid only, so fill fronts advance
		// one ring per pass.
		next := curr.Clone()
		filled := 0
		for x := 0; x < curr.Width; x++ {
			for y := 0; y < curr.Height; y++ {
				if curr.At(x, y) != raster.Invalid {
					continue
				}
				neighbors = neighbors[:0]
				for dx := -1; dx <= 1; dx++ {
					for dy := -1; dy <= 1; dy++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := x+dx, y+dy
						if !curr.In(nx, ny) {
							continue
						}
						if v := curr.At(nx, ny); v != raster.Invalid {
							neighbors = append(neighbors, float64(v))
						}
					}
				}
				if len(neighbors) == 0 {
					continue
				}
				sort.Float64s(neighbors)
				// stat.Mode may return any of several tied values, so take
				// the first value of the sorted neighborhood whose run
				// reaches the maximal count.
				_, maxCount := stat.Mode(neighbors, nil)
				mode := neighbors[0]
				for i := 0; i < len(neighbors); {
					j := i
					for j < len(neighbors) && neighbors[j] == neighbors[i] {
						j++
					}
					if float64(j-i) == maxCount {
						mode = neighbors[i]
						break
					}
					i = j
				}
				next.Set(x, y, int32(mode))
				filled++
			}
		}
		if filled == 0 {
			return nil, ErrAllInvalid
		}
		remaining -= filled
		curr = next
	}
	return curr, nil
}
