// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package slip

import (
	"strings"
	"testing"

	"github.com/musealliance/installation-controller/internal/catalog"
	"github.com/musealliance/installation-controller/internal/printer"
)

const testCatalogCSV = `epc,question,answer_index,title,tools,places,programs
AA,F01,0,Curious Fox,Hammer,Workshop,Night Class
BB,F02,0,Quiet Garden,Trowel,Greenhouse,Garden Club
CC,F03,0,Bright Lantern,Flashlight,Observatory,Star Watch
DD,F04,0,Steady Table,Level,Studio,Woodshop
EE,F05,0,Open Door,Key,Library,Reading Circle
FF,F06,0,Kind Word,Pen,Cafe,Writers Group
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(strings.NewReader(testCatalogCSV))
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return cat
}

func goldenAnswers() [6]catalog.Answer {
	return [6]catalog.Answer{
		{Question: catalog.F01, Index: 0},
		{Question: catalog.F02, Index: 0},
		{Question: catalog.F03, Index: 0},
		{Question: catalog.F04, Index: 0},
		{Question: catalog.F05, Index: 0},
		{Question: catalog.F06, Index: 0},
	}
}

func TestBuildRecordFigurineIDMatchesMixRadix(t *testing.T) {
	cat := testCatalog(t)
	rec, err := BuildRecord("slip-1", goldenAnswers(), "p1", "p2", false, cat, "2026-07-30T00:00:00Z")
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}
	if rec.FigurineID != 1 {
		t.Fatalf("expected figurine id 1 for the golden path, got %d", rec.FigurineID)
	}
	if rec.Title != "Curious Fox" {
		t.Fatalf("expected title from F01's answer, got %q", rec.Title)
	}
	if rec.ResourcesTools[0] != "Hammer" {
		t.Fatalf("expected F01 tools resource, got %q", rec.ResourcesTools[0])
	}
}

type fakeSink struct {
	written [][]byte
	claimed bool
}

func (f *fakeSink) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.written = append(f.written, cp)
	return len(p), nil
}
func (f *fakeSink) Claim() error   { f.claimed = true; return nil }
func (f *fakeSink) Release() error { f.claimed = false; return nil }

func TestComposeEndsWithExactlyOneCut(t *testing.T) {
	cat := testCatalog(t)
	rec, err := BuildRecord("slip-1", goldenAnswers(), "Hello.", "Enjoy.", false, cat, "2026-07-30T00:00:00Z")
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}

	sink := &fakeSink{}
	p := printer.New(sink, DefaultPrinterWidthDots)
	c := NewComposer("https://gallery.example.org/view")
	if err := c.Compose(p, rec); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(sink.written) != 1 {
		t.Fatalf("expected exactly one flushed write (one cut), got %d", len(sink.written))
	}
	if sink.claimed {
		t.Fatalf("expected sink to be released after cut")
	}
}
