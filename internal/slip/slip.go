// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package slip implements the receipt composer (C9): it assembles a slip
// record's figurine, prose, and resources into the printer's ordered
// command sequence, and renders the QR code linking back to the gallery.
//
// Grounded on the teacher's small-vocabulary-over-a-transport idiom (same
// shape as internal/printer itself) plus the seedhammer manifest's QR
// generation library, the only pack sibling composing a code into a
// device bitmap.
package slip

import (
	"fmt"
	"net/url"

	"github.com/kortschak/qr"

	"github.com/musealliance/installation-controller/internal/catalog"
	"github.com/musealliance/installation-controller/internal/figurine"
	"github.com/musealliance/installation-controller/internal/printer"
	"github.com/musealliance/installation-controller/internal/shape"
)

// DefaultPrinterWidthDots is the printer's horizontal dot count used to
// rasterize the figurine and QR bitmaps, per spec §4.9.
const DefaultPrinterWidthDots = 512

// Record is the persisted slip per spec §3: created once per successful
// cycle and never mutated except to flip Uploaded to true.
type Record struct {
	SlipUUID          string    `json:"slip_uuid"`
	FigurineID        int       `json:"figurine_id"`
	AnswerIndices     [6]int    `json:"answer_indices"`
	Title             string    `json:"title"`
	Paragraph1        string    `json:"paragraph1"`
	Paragraph2        string    `json:"paragraph2"`
	ResourcesTools    [6]string `json:"resources_tools"`
	ResourcesPlaces   [6]string `json:"resources_places"`
	ResourcesPrograms [6]string `json:"resources_programs"`
	UsedFallback      bool      `json:"used_fallback"`
	Printed           bool      `json:"printed"`
	Uploaded          bool      `json:"uploaded"`
	GeneratedAt       string    `json:"generated_at"`
}

// Composer builds printer command sequences for slip records.
type Composer struct {
	GalleryBaseURL   string
	PrinterWidthDots int
}

// NewComposer returns a Composer that links QR codes back to galleryBaseURL.
func NewComposer(galleryBaseURL string) *Composer {
	return &Composer{GalleryBaseURL: galleryBaseURL, PrinterWidthDots: DefaultPrinterWidthDots}
}

// Compose appends the full receipt page to p, in the order fixed by
// spec §4.9: title banner, two blank lines, figurine bitmap, two-word
// title, figurine id line, the two paragraphs, three resource blocks, QR
// code, footer, cut.
func (c *Composer) Compose(p *printer.Adapter, rec Record) error {
	width := c.PrinterWidthDots
	if width <= 0 {
		width = DefaultPrinterWidthDots
	}

	p.Text("YOUR FIGURINE", printer.StyleCentered)
	p.Feed(2)

	shapes, err := figurine.ShapesOf(rec.FigurineID)
	if err != nil {
		return fmt.Errorf("slip: compose: %w", err)
	}
	fig, err := shape.Compose(shapes, float64(width))
	if err != nil {
		return fmt.Errorf("slip: compose: %w", err)
	}
	if err := p.Image(shape.Rasterize(fig, width)); err != nil {
		return fmt.Errorf("slip: compose: %w", err)
	}

	p.Text(rec.Title, printer.StyleBold)
	p.Text(fmt.Sprintf("%d of %d", rec.FigurineID, figurine.MaxID), printer.StyleNormal)
	p.Feed(1)

	p.Text(rec.Paragraph1, printer.StyleNormal)
	p.Feed(1)
	p.Text(rec.Paragraph2, printer.StyleNormal)
	p.Feed(1)

	writeResourceBlock(p, "TOOLS", rec.ResourcesTools)
	writeResourceBlock(p, "PLACES", rec.ResourcesPlaces)
	writeResourceBlock(p, "PROGRAMS", rec.ResourcesPrograms)

	code, err := c.renderQR(rec)
	if err != nil {
		return fmt.Errorf("slip: compose: %w", err)
	}
	if err := p.QRCode(code.Image(), width); err != nil {
		return fmt.Errorf("slip: compose: %w", err)
	}

	p.Feed(1)
	p.Text("Thank you for visiting.", printer.StyleCentered)
	return p.Cut()
}

func writeResourceBlock(p *printer.Adapter, heading string, items [6]string) {
	p.Text(heading, printer.StyleBold)
	for _, item := range items {
		if item == "" {
			continue
		}
		p.Text(item, printer.StyleNormal)
	}
	p.Feed(1)
}

// renderQR encodes the gallery URL carrying the slip uuid and figurine id
// and rasterizes it with github.com/kortschak/qr, the same library
// seedhammer uses for its engraved seed-plate QR codes.
func (c *Composer) renderQR(rec Record) (*qr.Code, error) {
	u, err := url.Parse(c.GalleryBaseURL)
	if err != nil {
		return nil, fmt.Errorf("gallery url: %w", err)
	}
	q := u.Query()
	q.Set("data_id", rec.SlipUUID)
	q.Set("figure_id", fmt.Sprintf("%d", rec.FigurineID))
	u.RawQuery = q.Encode()

	code, err := qr.Encode(u.String(), qr.M)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return code, nil
}

// BuildRecord assembles a Record from the resolved answers, generated
// prose, and catalog resources, keeping figurine_id == mix_radix(answers)
// an invariant enforced by construction rather than checked after.
func BuildRecord(slipUUID string, answers [6]catalog.Answer, paragraph1, paragraph2 string, usedFallback bool, cat *catalog.Catalog, generatedAt string) (Record, error) {
	var set figurine.AnswerSet
	var indices [6]int
	for i, a := range answers {
		set[i] = a.Index
		indices[i] = a.Index
	}
	id := figurine.Encode(set)

	rec := Record{
		SlipUUID:      slipUUID,
		FigurineID:    id,
		AnswerIndices: indices,
		Title:         cat.Title(answers[catalog.F01].Question, answers[catalog.F01].Index),
		Paragraph1:    paragraph1,
		Paragraph2:    paragraph2,
		UsedFallback:  usedFallback,
		GeneratedAt:   generatedAt,
	}
	for i, a := range answers {
		rec.ResourcesTools[i] = cat.Resource(a.Question, a.Index, catalog.KindTools)
		rec.ResourcesPlaces[i] = cat.Resource(a.Question, a.Index, catalog.KindPlaces)
		rec.ResourcesPrograms[i] = cat.Resource(a.Question, a.Index, catalog.KindPrograms)
	}
	return rec, nil
}
