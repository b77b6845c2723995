// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package catalog implements the read-only answer/resource table (C5),
// loaded once at startup from a tabular source (spreadsheet/database export,
// treated per spec.md §1 as a read-only table).
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/musealliance/installation-controller/internal/errs"
)

// Question is one of the six fixed installation questions.
type Question int

const (
	F01 Question = iota
	F02
	F03
	F04
	F05
	F06
	numQuestions = 6
)

// Radices is k_q, the number of answers per question, in canonical order
// F01..F06.
var Radices = [numQuestions]int{6, 5, 5, 6, 6, 5}

// Answer is one resolved (question, answer index) pair.
type Answer struct {
	Question Question
	Index    int
}

// ResourceKind selects which of the three resource strings to read.
type ResourceKind int

const (
	KindTools ResourceKind = iota
	KindPlaces
	KindPrograms
)

type resourceKey struct {
	q    Question
	a    int
	kind ResourceKind
}

// Catalog is the loaded, read-only answer/resource table.
type Catalog struct {
	epcToAnswer map[string]Answer
	titles      map[Answer]string
	resources   map[resourceKey]string
}

// Load reads the catalog from a CSV reader with columns:
//
//	epc,question,answer_index,title,tools,places,programs
//
// question is one of F01..F06 (case-insensitive). Rows are otherwise
// free-form: missing resource cells simply yield the empty string later, per
// spec §4.5.
func Load(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("catalog: %w: %v", errs.ErrConfigurationError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog: %w: empty table", errs.ErrConfigurationError)
	}

	c := &Catalog{
		epcToAnswer: map[string]Answer{},
		titles:      map[Answer]string{},
		resources:   map[resourceKey]string{},
	}

	start := 0
	if isHeaderRow(rows[0]) {
		start = 1
	}

	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 4 {
			return nil, fmt.Errorf("catalog: %w: row %d has too few columns", errs.ErrConfigurationError, i)
		}
		epc := normalizeEPC(row[0])
		q, err := parseQuestion(row[1])
		if err != nil {
			return nil, fmt.Errorf("catalog: row %d: %w", i, err)
		}
		idx, err := strconv.Atoi(row[2])
		if err != nil || idx < 0 || idx >= Radices[q] {
			return nil, fmt.Errorf("catalog: row %d: %w: bad answer index %q", i, errs.ErrConfigurationError, row[2])
		}
		ans := Answer{Question: q, Index: idx}
		if epc != "" {
			c.epcToAnswer[epc] = ans
		}
		title := row[3]
		if title == "" {
			return nil, fmt.Errorf("catalog: row %d: %w: empty title for %v", i, errs.ErrConfigurationError, ans)
		}
		c.titles[ans] = title
		for kind, col := range map[ResourceKind]int{KindTools: 4, KindPlaces: 5, KindPrograms: 6} {
			if col < len(row) && row[col] != "" {
				c.resources[resourceKey{q, idx, kind}] = row[col]
			}
		}
	}
	return c, nil
}

func isHeaderRow(row []string) bool {
	return len(row) > 0 && (row[0] == "epc" || row[0] == "EPC")
}

func parseQuestion(s string) (Question, error) {
	switch s {
	case "F01", "f01":
		return F01, nil
	case "F02", "f02":
		return F02, nil
	case "F03", "f03":
		return F03, nil
	case "F04", "f04":
		return F04, nil
	case "F05", "f05":
		return F05, nil
	case "F06", "f06":
		return F06, nil
	default:
		return 0, fmt.Errorf("%w: unknown question %q", errs.ErrConfigurationError, s)
	}
}

// AnswerOf resolves an EPC to its catalog answer. The second return value is
// false for an unregistered tag, which per spec §3/§7 aborts the cycle.
func (c *Catalog) AnswerOf(epc string) (Answer, bool) {
	a, ok := c.epcToAnswer[normalizeEPC(epc)]
	return a, ok
}

// Resource returns the resource string of the given kind for (q,a), or the
// empty string if absent.
func (c *Catalog) Resource(q Question, a int, kind ResourceKind) string {
	return c.resources[resourceKey{q, a, kind}]
}

// Title returns the two-word (by convention) title for (q,a).
func (c *Catalog) Title(q Question, a int) string {
	return c.titles[Answer{Question: q, Index: a}]
}

func normalizeEPC(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			out = append(out, byte(r))
		case r >= 'a' && r <= 'f':
			out = append(out, byte(r-'a'+'A'))
		case r >= 'A' && r <= 'F':
			out = append(out, byte(r))
		}
	}
	return string(out)
}
