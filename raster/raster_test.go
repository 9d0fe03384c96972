package raster

import (
	"path/filepath"
	"testing"
)

func TestAffineApply(t *testing.T) {
	ttable := []struct {
		name     string
		tr       Affine
		col, row float64
		x, y     float64
	}{
		{"identity origin", Identity(), 0, 0, 0, 0},
		{"identity", Identity(), 3, 2, 3, 2},
		{"north-up", NorthUp(100, 200, 10), 2, 3, 120, 170},
	}
	for _, tt := range ttable {
		x, y := tt.tr.Apply(tt.col, tt.row)
		if x != tt.x || y != tt.y {
			t.Fatalf("%s: got (%v, %v), want (%v, %v)", tt.name, x, y, tt.x, tt.y)
		}
	}
}

func TestAffineTranslate(t *testing.T) {
	tr := NorthUp(0, 0, 1)
	sub := tr.Translate(3, 2) // col 3, row 2
	x, y := sub.Apply(0, 0)
	if x != 3 || y != -2 {
		t.Fatalf("translated origin = (%v, %v), want (3, -2)", x, y)
	}
}

func TestSubGrid(t *testing.T) {
	g := NewGrid(4, 4, NorthUp(0, 0, 1))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			g.Set(x, y, int32(x*10+y))
		}
	}
	sub, err := g.SubGrid(1, 2, 2, 2)
	if err != nil {
		t.Fatalf("SubGrid: %v", err)
	}
	if sub.Width != 2 || sub.Height != 2 {
		t.Fatalf("subgrid dims %dx%d, want 2x2", sub.Width, sub.Height)
	}
	if sub.At(0, 0) != 12 || sub.At(1, 1) != 23 {
		t.Fatalf("subgrid values %d, %d; want 12, 23", sub.At(0, 0), sub.At(1, 1))
	}
	if _, err := g.SubGrid(3, 3, 2, 2); err == nil {
		t.Fatalf("out-of-bounds SubGrid should fail")
	}
}

func TestNpyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.npy")
	g := NewGrid(3, 5, Identity())
	for i := range g.Data {
		g.Data[i] = int32(i - 2)
	}
	if err := WriteNpy(path, g); err != nil {
		t.Fatalf("WriteNpy: %v", err)
	}
	got, err := ReadNpy(path, Identity())
	if err != nil {
		t.Fatalf("ReadNpy: %v", err)
	}
	if got.Width != 3 || got.Height != 5 {
		t.Fatalf("dims %dx%d, want 3x5", got.Width, got.Height)
	}
	for i := range g.Data {
		if got.Data[i] != g.Data[i] {
			t.Fatalf("data[%d] = %d, want %d", i, got.Data[i], g.Data[i])
		}
	}
}

func TestGridSourceWindowClipping(t *testing.T) {
	g := NewGrid(4, 4, Identity())
	g.Fill(6)
	src := NewGridSource(g)

	w, err := src.ReadWindow(-2, -2, 4, 4)
	if err != nil {
		t.Fatalf("ReadWindow: %v", err)
	}
	if w.Width != 2 || w.Height != 2 {
		t.Fatalf("clipped window %dx%d, want 2x2", w.Width, w.Height)
	}
	if _, err := src.ReadWindow(10, 10, 2, 2); err == nil {
		t.Fatalf("fully outside window should fail")
	}
}

func TestPixelSize(t *testing.T) {
	src := NewGridSource(NewGrid(2, 2, NorthUp(0, 0, 2.5)))
	size, err := src.PixelSize()
	if err != nil {
		t.Fatalf("PixelSize: %v", err)
	}
	if size != 2.5 {
		t.Fatalf("pixel size = %v, want 2.5", size)
	}

	src = NewGridSource(NewGrid(2, 2, Affine{A: 2, E: -3}))
	if _, err := src.PixelSize(); err == nil {
		t.Fatalf("non-square pixels should fail without an override")
	}
}
