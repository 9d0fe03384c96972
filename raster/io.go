package raster

import (
	"fmt"

	"github.com/kshedden/gonpy"
)

// ReadNpy loads a 2-D int32 npy file into a grid with the given transform.
// Files written with other integer dtypes are widened or narrowed to int32.
func ReadNpy(path string, transform Affine) (*Grid, error) {
	rdr, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open npy %s: %w", path, err)
	}
	if len(rdr.Shape) != 2 {
		return nil, fmt.Errorf("npy %s: want 2-D array, got shape %v", path, rdr.Shape)
	}
	width, height := rdr.Shape[0], rdr.Shape[1]

	var data []int32
	switch rdr.Dtype {
	case "i4":
		data, err = rdr.GetInt32()
		if err != nil {
			return nil, fmt.Errorf("read npy %s: %w", path, err)
		}
	case "i8":
		wide, err := rdr.GetInt64()
		if err != nil {
			return nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		data = make([]int32, len(wide))
		for i, v := range wide {
			data[i] = int32(v)
		}
	case "i2":
		narrow, err := rdr.GetInt16()
		if err != nil {
			return nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		data = make([]int32, len(narrow))
		for i, v := range narrow {
			data[i] = int32(v)
		}
	case "i1":
		bytes, err := rdr.GetInt8()
		if err != nil {
			return nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		data = make([]int32, len(bytes))
		for i, v := range bytes {
			data[i] = int32(v)
		}
	default:
		return nil, fmt.Errorf("npy %s: unsupported dtype %q", path, rdr.Dtype)
	}

	if len(data) != width*height {
		return nil, fmt.Errorf("npy %s: %d values for shape %v", path, len(data), rdr.Shape)
	}
	if rdr.ColumnMajor {
		// Transpose into the row-major layout Grid uses.
		rm := make([]int32, len(data))
		for x := 0; x < width; x++ {
			for y := 0; y < height; y++ {
				rm[x*height+y] = data[y*width+x]
			}
		}
		data = rm
	}

	return &Grid{Width: width, Height: height, Transform: transform, Data: data}, nil
}

// WriteNpy saves the grid as a 2-D int32 npy file.
func WriteNpy(path string, g *Grid) error {
	wtr, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("create npy %s: %w", path, err)
	}
	wtr.Shape = []int{g.Width, g.Height}
	if err := wtr.WriteInt32(g.Data); err != nil {
		return fmt.Errorf("write npy %s: %w", path, err)
	}
	return nil
}
