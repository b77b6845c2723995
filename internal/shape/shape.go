// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package shape implements the parametric vector shape library and the
// figurine composer (C7): stacking six named primitives into one centered
// vertical figure, both as a canonical deterministic vector form and, via
// github.com/srwiley/rasterx, as a rasterized monochrome bitmap for the
// printer path.
//
// Grounded on the seedhammer project's use of rasterx for device-bound
// vector rendering (see DESIGN.md); the "named primitive with a fixed
// aspect ratio" idiom is this package's own, since no example repo carries
// a parametric 2D shape library.
package shape

import "sort"

// Kind selects which family of outline a primitive draws. A handful of
// parametric kinds is enough to give each of the catalog's named shapes a
// distinct, deterministic silhouette without hand-authoring 20+ bespoke
// vector paths.
type Kind int

const (
	KindEllipse Kind = iota
	KindPolygon
)

// Primitive is one named shape in the library: a fixed aspect ratio
// (width/height) and an outline kind/parameter used to generate its path.
type Primitive struct {
	Name        string
	AspectRatio float64
	Kind        Kind
	Sides       int // polygon side count; unused for KindEllipse
}

// Library is the fixed set of named shapes referenced by
// internal/figurine's SHAPES[q][a] table.
var Library = buildLibrary()

func buildLibrary() map[string]Primitive {
	defs := []Primitive{
		{Name: "cube", AspectRatio: 1.0, Kind: KindPolygon, Sides: 4},
		{Name: "cone", AspectRatio: 0.8, Kind: KindPolygon, Sides: 3},
		{Name: "sphere", AspectRatio: 1.0, Kind: KindEllipse},
		{Name: "pyramid", AspectRatio: 0.9, Kind: KindPolygon, Sides: 3},
		{Name: "cylinder", AspectRatio: 0.6, Kind: KindEllipse},
		{Name: "torus", AspectRatio: 1.2, Kind: KindEllipse},
		{Name: "disc", AspectRatio: 1.4, Kind: KindEllipse},
		{Name: "ring", AspectRatio: 1.1, Kind: KindEllipse},
		{Name: "star", AspectRatio: 1.0, Kind: KindPolygon, Sides: 5},
		{Name: "hexagon", AspectRatio: 1.0, Kind: KindPolygon, Sides: 6},
		{Name: "diamond", AspectRatio: 0.7, Kind: KindPolygon, Sides: 4},
		{Name: "leaf", AspectRatio: 0.5, Kind: KindEllipse},
		{Name: "droplet", AspectRatio: 0.6, Kind: KindPolygon, Sides: 3},
		{Name: "crescent", AspectRatio: 1.3, Kind: KindEllipse},
		{Name: "arch", AspectRatio: 1.6, Kind: KindEllipse},
		{Name: "shell", AspectRatio: 0.9, Kind: KindEllipse},
		{Name: "pedestal", AspectRatio: 2.0, Kind: KindPolygon, Sides: 4},
		{Name: "crown", AspectRatio: 1.5, Kind: KindPolygon, Sides: 5},
		{Name: "lantern", AspectRatio: 0.7, Kind: KindPolygon, Sides: 6},
		{Name: "wing", AspectRatio: 1.8, Kind: KindPolygon, Sides: 3},
		{Name: "spiral", AspectRatio: 1.0, Kind: KindEllipse},
		{Name: "lattice", AspectRatio: 1.2, Kind: KindPolygon, Sides: 4},
		{Name: "banner", AspectRatio: 1.7, Kind: KindPolygon, Sides: 4},
		{Name: "spire", AspectRatio: 0.4, Kind: KindPolygon, Sides: 3},
		{Name: "halo", AspectRatio: 1.3, Kind: KindEllipse},
		{Name: "flame", AspectRatio: 0.6, Kind: KindPolygon, Sides: 3},
		{Name: "cloud", AspectRatio: 1.9, Kind: KindEllipse},
		{Name: "beacon", AspectRatio: 0.5, Kind: KindPolygon, Sides: 5},
	}
	lib := make(map[string]Primitive, len(defs))
	for _, p := range defs {
		lib[p.Name] = p
	}
	return lib
}

// Names returns the library's shape names, sorted, mostly useful for tests
// and diagnostics.
func Names() []string {
	out := make([]string, 0, len(Library))
	for n := range Library {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
