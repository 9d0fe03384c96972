package blobifier

import (
	"errors"
	"testing"

	"github.com/rainflame/geopolygonize/raster"
)

func gridFrom(t *testing.T, rows [][]int32) *raster.Grid {
	t.Helper()
	g := raster.NewGrid(len(rows), len(rows[0]), raster.Identity())
	for x, row := range rows {
		for y, v := range row {
			g.Set(x, y, v)
		}
	}
	return g
}

func countValue(g *raster.Grid, v int32) int {
	count := 0
	for _, p := range g.Data {
		if p == v {
			count++
		}
	}
	return count
}

func TestBlobifySinglePixelFilled(t *testing.T) {
	const A, B = 7, 3
	rows := make([][]int32, 5)
	for x := range rows {
		rows[x] = make([]int32, 5)
		for y := range rows[x] {
			rows[x][y] = B
		}
	}
	rows[2][2] = A
	g := gridFrom(t, rows)

	cleaned, err := New(g, 2).Blobify()
	if err != nil {
		t.Fatalf("Blobify() error: %v", err)
	}
	if got := countValue(cleaned, A); got != 0 {
		t.Fatalf("%d pixels of label %d remain, want 0", got, A)
	}
	if got := countValue(cleaned, B); got != 25 {
		t.Fatalf("%d pixels of label %d, want 25", got, B)
	}
}

func TestBlobifyExactThresholdKept(t *testing.T) {
	// a 2-pixel blob with min size 2 survives untouched
	g := gridFrom(t, [][]int32{
		{1, 1, 1, 1},
		{1, 2, 2, 1},
		{1, 1, 1, 1},
		{1, 1, 1, 1},
	})
	cleaned, err := New(g, 2).Blobify()
	if err != nil {
		t.Fatalf("Blobify() error: %v", err)
	}
	if got := countValue(cleaned, 2); got != 2 {
		t.Fatalf("%d pixels of label 2, want 2", got)
	}
}

func TestBlobifyHoleSurvivesAndAbsorbs(t *testing.T) {
	build := func() *raster.Grid {
		rows := make([][]int32, 10)
		for x := range rows {
			rows[x] = make([]int32, 10)
			for y := range rows[x] {
				rows[x][y] = 1
			}
		}
		// 3x3 hole of label 9
		for x := 3; x < 6; x++ {
			for y := 3; y < 6; y++ {
				rows[x][y] = 9
			}
		}
		return gridFrom(t, rows)
	}

	ttable := []struct {
		minBlobSize int
		wantNine    int
	}{
		{9, 9},  // exactly at threshold: survives
		{10, 0}, // under threshold: absorbed
	}
	for _, tt := range ttable {
		cleaned, err := New(build(), tt.minBlobSize).Blobify()
		if err != nil {
			t.Fatalf("Blobify(min=%d) error: %v", tt.minBlobSize, err)
		}
		if got := countValue(cleaned, 9); got != tt.wantNine {
			t.Fatalf("min=%d: %d pixels of label 9, want %d", tt.minBlobSize, got, tt.wantNine)
		}
	}
}

func TestBlobifyFillIntroducesNoNewLabel(t *testing.T) {
	// the single 9 pixel is masked and refilled from a neighborhood of 2s
	// and 4s
	g := gridFrom(t, [][]int32{
		{2, 2, 2, 4, 4, 4},
		{2, 2, 2, 4, 4, 4},
		{2, 2, 9, 4, 4, 4},
		{2, 2, 2, 4, 4, 4},
	})
	cleaned, err := New(g, 2).Blobify()
	if err != nil {
		t.Fatalf("Blobify() error: %v", err)
	}
	// the masked pixel has 5 neighbors of 2 and 3 of 4, so 2 wins
	// outright here; assert no 9 remains and no new label appeared
	if got := countValue(cleaned, 9); got != 0 {
		t.Fatalf("%d pixels of label 9 remain, want 0", got)
	}
	if countValue(cleaned, 2)+countValue(cleaned, 4) != 24 {
		t.Fatalf("fill introduced an unexpected label")
	}
}

func TestBlobifyAllInvalid(t *testing.T) {
	g := gridFrom(t, [][]int32{
		{5, 5},
		{5, 5},
	})
	_, err := New(g, 10).Blobify()
	if !errors.Is(err, ErrAllInvalid) {
		t.Fatalf("Blobify() = %v, want ErrAllInvalid", err)
	}
}

func TestBlobifyDiagonalIsNotConnected(t *testing.T) {
	// two diagonal pixels of the same label are separate components
	// under 4-connectivity, so each is too small alone
	g := gridFrom(t, [][]int32{
		{8, 1, 1},
		{1, 8, 1},
		{1, 1, 1},
	})
	cleaned, err := New(g, 2).Blobify()
	if err != nil {
		t.Fatalf("Blobify() error: %v", err)
	}
	if got := countValue(cleaned, 8); got != 0 {
		t.Fatalf("%d pixels of label 8 remain, want 0", got)
	}
}
