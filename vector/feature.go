// Package vector holds the polygon feature sets flowing through the
// pipeline's vector-typed steps, their shapefile persistence, and the
// polygon set operations (union, difference) built on polyclip.
package vector

import (
	"github.com/paulmach/orb"
)

// Feature is one labeled polygon.
type Feature struct {
	Polygon orb.Polygon
	Label   int32
}

// FeatureSet is the payload of a vector-typed pipeline step.
type FeatureSet struct {
	Features []Feature
}

// NewFeatureSet builds a feature set from parallel polygon and label slices.
func NewFeatureSet(polygons []orb.Polygon, labels []int32) *FeatureSet {
	fs := &FeatureSet{Features: make([]Feature, len(polygons))}
	for i := range polygons {
		fs.Features[i] = Feature{Polygon: polygons[i], Label: labels[i]}
	}
	return fs
}

// Polygons returns the features' geometries in order.
func (fs *FeatureSet) Polygons() []orb.Polygon {
	out := make([]orb.Polygon, len(fs.Features))
	for i, f := range fs.Features {
		out[i] = f.Polygon
	}
	return out
}

// Labels returns the features' labels in order.
func (fs *FeatureSet) Labels() []int32 {
	out := make([]int32, len(fs.Features))
	for i, f := range fs.Features {
		out[i] = f.Label
	}
	return out
}

// Append adds a feature.
func (fs *FeatureSet) Append(p orb.Polygon, label int32) {
	fs.Features = append(fs.Features, Feature{Polygon: p, Label: label})
}

// Len returns the number of features.
func (fs *FeatureSet) Len() int { return len(fs.Features) }
