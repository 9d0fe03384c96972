// Package raster provides the label grids the pipeline operates on: 2-D
// int32 rasters with an affine world transform, plus npy persistence.
package raster

import (
	"fmt"
)

// Invalid is the sentinel for pixels that carry no label. It is negative and
// therefore disjoint from any valid label the pipeline accepts.
const Invalid int32 = -1

// Affine maps pixel indices to world coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// This is the usual six-coefficient geo transform with the translation terms
// last.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the transform that maps pixel indices to themselves.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// NorthUp returns the conventional north-up transform for square pixels of
// size px anchored at world origin (ox, oy).
func NorthUp(ox, oy, px float64) Affine {
	return Affine{A: px, C: ox, E: -px, F: oy}
}

// Apply maps a (col, row) pixel position to world coordinates. Fractional
// positions are valid; pixel corners are obtained with integer inputs.
func (t Affine) Apply(col, row float64) (x, y float64) {
	x = t.A*col + t.B*row + t.C
	y = t.D*col + t.E*row + t.F
	return x, y
}

// Translate returns the transform for a sub-grid whose origin lies at pixel
// (col, row) of the parent grid.
func (t Affine) Translate(col, row float64) Affine {
	x, y := t.Apply(col, row)
	out := t
	out.C = x
	out.F = y
	return out
}

// Grid is a 2-D raster of int32 labels.
//
// Following the source rasters, x runs along rows and y along columns:
// Width is the extent in x (number of rows) and Height the extent in y
// (number of columns). Data is stored row-major.
type Grid struct {
	Width     int
	Height    int
	Transform Affine
	Data      []int32
}

// NewGrid allocates a zero-filled width x height grid.
func NewGrid(width, height int, transform Affine) *Grid {
	return &Grid{
		Width:     width,
		Height:    height,
		Transform: transform,
		Data:      make([]int32, width*height),
	}
}

// At returns the label at row x, column y.
func (g *Grid) At(x, y int) int32 {
	return g.Data[x*g.Height+y]
}

// Set writes the label at row x, column y.
func (g *Grid) Set(x, y int, v int32) {
	g.Data[x*g.Height+y] = v
}

// In reports whether (x, y) lies inside the grid.
func (g *Grid) In(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// Fill sets every pixel to v.
func (g *Grid) Fill(v int32) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		Width:     g.Width,
		Height:    g.Height,
		Transform: g.Transform,
		Data:      make([]int32, len(g.Data)),
	}
	copy(out.Data, g.Data)
	return out
}

// SubGrid copies the rectangle [x0:x0+w, y0:y0+h] into a new grid whose
// transform is translated accordingly. The rectangle must lie inside g.
func (g *Grid) SubGrid(x0, y0, w, h int) (*Grid, error) {
	if x0 < 0 || y0 < 0 || x0+w > g.Width || y0+h > g.Height {
		return nil, fmt.Errorf("subgrid [%d:%d %dx%d] outside grid %dx%d",
			x0, y0, w, h, g.Width, g.Height)
	}
	// x is the row axis, so the world origin moves by (col=y0, row=x0).
	out := NewGrid(w, h, g.Transform.Translate(float64(y0), float64(x0)))
	for x := 0; x < w; x++ {
		copy(out.Data[x*h:(x+1)*h], g.Data[(x0+x)*g.Height+y0:(x0+x)*g.Height+y0+h])
	}
	return out, nil
}

// Blit copies src into g with src's origin at (x0, y0), clipping to g.
func (g *Grid) Blit(src *Grid, x0, y0 int) {
	for x := 0; x < src.Width; x++ {
		gx := x0 + x
		if gx < 0 || gx >= g.Width {
			continue
		}
		for y := 0; y < src.Height; y++ {
			gy := y0 + y
			if gy < 0 || gy >= g.Height {
				continue
			}
			g.Set(gx, gy, src.At(x, y))
		}
	}
}

// Values returns the sorted distinct labels present in the grid, excluding
// the invalid sentinel.
func (g *Grid) Values() []int32 {
	seen := make(map[int32]struct{})
	for _, v := range g.Data {
		if v == Invalid {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]int32, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
