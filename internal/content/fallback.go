// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package content

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/musealliance/installation-controller/internal/errs"
)

// FallbackKey is the three "personality axis" answer indices the fallback
// table is keyed by, per spec §4.8: F01, F05, F06.
type FallbackKey struct {
	F01, F05, F06 int
}

// FallbackTable is the CSV-shipped deterministic content used when the
// remote service is unavailable or quota-exhausted. Per spec, fallback
// content is always available, so Lookup never fails for a key present in
// every combination of the three axes -- callers should load a table that
// covers the full cross product.
type FallbackTable struct {
	rows map[FallbackKey]Paragraphs
}

// Paragraphs is the two-paragraph content payload returned by both the
// remote service and the fallback table.
type Paragraphs struct {
	Paragraph1 string
	Paragraph2 string
}

// LoadFallback reads the fallback CSV: columns
// answer_F01,answer_F05,answer_F06,paragraph1,paragraph2.
func LoadFallback(r io.Reader) (*FallbackTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("content: fallback table: %w: %v", errs.ErrConfigurationError, err)
	}
	t := &FallbackTable{rows: map[FallbackKey]Paragraphs{}}
	start := 0
	if len(rows) > 0 && rows[0][0] == "answer_F01" {
		start = 1
	}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 5 {
			return nil, fmt.Errorf("content: fallback table: row %d: %w: too few columns", i, errs.ErrConfigurationError)
		}
		key, err := parseKey(row[0], row[1], row[2])
		if err != nil {
			return nil, fmt.Errorf("content: fallback table: row %d: %w", i, err)
		}
		t.rows[key] = Paragraphs{Paragraph1: row[3], Paragraph2: row[4]}
	}
	return t, nil
}

func parseKey(f01, f05, f06 string) (FallbackKey, error) {
	a, err := strconv.Atoi(f01)
	if err != nil {
		return FallbackKey{}, fmt.Errorf("%w: bad F01 index %q", errs.ErrConfigurationError, f01)
	}
	b, err := strconv.Atoi(f05)
	if err != nil {
		return FallbackKey{}, fmt.Errorf("%w: bad F05 index %q", errs.ErrConfigurationError, f05)
	}
	c, err := strconv.Atoi(f06)
	if err != nil {
		return FallbackKey{}, fmt.Errorf("%w: bad F06 index %q", errs.ErrConfigurationError, f06)
	}
	return FallbackKey{F01: a, F05: b, F06: c}, nil
}

// Lookup returns the fallback paragraphs for key, or a generic placeholder
// pair if the exact combination is absent from the table (keeps generate()
// total even against an incomplete fallback CSV).
func (t *FallbackTable) Lookup(key FallbackKey) Paragraphs {
	if p, ok := t.rows[key]; ok {
		return p
	}
	return Paragraphs{
		Paragraph1: "Thank you for visiting the installation.",
		Paragraph2: "Your figurine is a one-of-a-kind record of today's visit.",
	}
}
