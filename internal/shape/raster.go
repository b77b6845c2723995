// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package shape

import (
	"image"
	"image/color"
	"math"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"
)

// Rasterize renders a composed Figure to a monochrome bitmap scaled to
// widthDots wide (the printer's fixed page width, spec §4.9 default 512),
// preserving the figure's aspect ratio. Both representations -- the
// canonical vector form and this raster -- are built from the same Figure,
// so shape order and height ratios stay exactly aligned per spec §9.
func Rasterize(f Figure, widthDots int) *image.Gray {
	scale := float64(widthDots) / f.CanvasWidth
	heightDots := int(math.Ceil(f.CanvasHeight * scale))
	if heightDots < 1 {
		heightDots = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, widthDots, heightDots))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}

	painter := rasterx.NewRGBAPainter(img)
	painter.SetColor(color.Black)
	scanner := rasterx.NewScannerGV(widthDots, heightDots, img, img.Bounds())
	filler := rasterx.NewFiller(widthDots, heightDots, scanner)
	filler.SetColor(color.Black)

	for _, l := range f.Levels {
		drawLevel(filler, l, scale)
	}
	filler.Draw()

	return toGray(img)
}

func drawLevel(filler *rasterx.Filler, l Level, scale float64) {
	x := l.X * scale
	y := l.Y * scale
	w := l.Width * scale
	h := l.Height * scale

	switch l.Kind {
	case KindEllipse:
		drawEllipse(filler, x+w/2, y+h/2, w/2, h/2)
	default:
		sides := l.Sides
		if sides < 3 {
			sides = 3
		}
		drawPolygon(filler, x+w/2, y+h/2, w/2, h/2, sides)
	}
}

func drawEllipse(filler *rasterx.Filler, cx, cy, rx, ry float64) {
	const segments = 32
	start := pt(cx+rx, cy)
	filler.Start(start)
	for i := 1; i <= segments; i++ {
		theta := 2 * math.Pi * float64(i) / segments
		filler.Line(pt(cx+rx*math.Cos(theta), cy+ry*math.Sin(theta)))
	}
	filler.Stop(true)
}

func drawPolygon(filler *rasterx.Filler, cx, cy, rx, ry float64, sides int) {
	start := pt(cx+rx, cy)
	filler.Start(start)
	for i := 1; i <= sides; i++ {
		theta := 2 * math.Pi * float64(i) / float64(sides)
		filler.Line(pt(cx+rx*math.Cos(theta), cy+ry*math.Sin(theta)))
	}
	filler.Stop(true)
}

func pt(x, y float64) fixed.Point26_6 {
	return fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
}

// toGray thresholds the filled RGBA canvas into a 1-bit-per-pixel-styled
// Gray image, matching the printer's monochrome dot output.
func toGray(img *image.RGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := (r*299 + g*587 + bl*114) / 1000
			if lum < 0x8000 {
				out.SetGray(x, y, color.Gray{Y: 0})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0xFF})
			}
		}
	}
	return out
}
