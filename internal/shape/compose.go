// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package shape

import (
	"fmt"
	"strings"
)

// HeightRatios is the per-level height ratio in visual top-to-bottom order
// (F06, F05, F04, F03, F02, F01), per spec §4.7/§3.
var HeightRatios = [6]float64{1.5, 3, 1, 6, 6, 1.5}

// Padding is added on every side of the composed canvas, per spec §4.7
// "Output canvas dimensions: max level width + 2*padding, ...".
const Padding = 8.0

// Level is one stacked shape, already placed within the canvas.
type Level struct {
	Shape  string
	Kind   Kind
	Sides  int
	X, Y   float64
	Width  float64
	Height float64
}

// Figure is the composed, centered vertical stack of six levels, plus its
// overall canvas dimensions.
type Figure struct {
	Levels       []Level
	CanvasWidth  float64
	CanvasHeight float64
}

// Compose splits totalHeight among the six levels using HeightRatios,
// computes each level's width from its shape's aspect ratio, horizontally
// centers every level, and stacks them top to bottom in the order shapes is
// given (the caller, figurine.ShapesOf, already returns F06..F01 visual
// order). It is a pure function: identical inputs yield an identical
// Figure, satisfying invariant #4 when serialized via Canonical.
func Compose(shapes []string, totalHeight float64) (Figure, error) {
	if len(shapes) != 6 {
		return Figure{}, fmt.Errorf("shape: compose requires exactly 6 shapes, got %d", len(shapes))
	}

	ratioSum := 0.0
	for _, r := range HeightRatios {
		ratioSum += r
	}

	levels := make([]Level, 6)
	maxWidth := 0.0
	y := Padding
	for i, name := range shapes {
		prim, ok := Library[name]
		if !ok {
			return Figure{}, fmt.Errorf("shape: unknown shape %q", name)
		}
		h := totalHeight * HeightRatios[i] / ratioSum
		w := h * prim.AspectRatio
		if w > maxWidth {
			maxWidth = w
		}
		levels[i] = Level{
			Shape:  name,
			Kind:   prim.Kind,
			Sides:  prim.Sides,
			Y:      y,
			Width:  w,
			Height: h,
		}
		y += h
	}

	canvasWidth := maxWidth + 2*Padding
	for i := range levels {
		levels[i].X = Padding + (maxWidth-levels[i].Width)/2
	}

	return Figure{
		Levels:       levels,
		CanvasWidth:  canvasWidth,
		CanvasHeight: y + Padding,
	}, nil
}

// Canonical serializes the figure into a deterministic, byte-identical text
// form: one line per level, fixed-point coordinates, plus a trailing canvas
// line. Two Compose calls with identical inputs produce identical output
// (invariant #4); float64 math in Compose is deterministic for fixed inputs
// so no sorting or normalization beyond formatting is required.
func (f Figure) Canonical() []byte {
	var b strings.Builder
	for _, l := range f.Levels {
		fmt.Fprintf(&b, "LEVEL %s kind=%d sides=%d x=%.4f y=%.4f w=%.4f h=%.4f\n",
			l.Shape, l.Kind, l.Sides, l.X, l.Y, l.Width, l.Height)
	}
	fmt.Fprintf(&b, "CANVAS w=%.4f h=%.4f\n", f.CanvasWidth, f.CanvasHeight)
	return []byte(b.String())
}
