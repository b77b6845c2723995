// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package figurine

// buildShapeTable assigns a shape-library primitive name to every (q, a)
// cell, per spec §3 "Shape selection per question is a fixed table
// SHAPES[q][a]". Names here must exist in the shape package's primitive
// library (internal/shape).
//
// F04's table is intentionally uniform (every answer maps to the same
// primitive): per spec §9's open question, this is treated as a regular
// axis that still contributes to encode/decode, the uniformity is a data
// fact, not special-cased code.
func buildShapeTable() [6][]string {
	return [6][]string{
		// F01, k=6
		{"cube", "cone", "sphere", "pyramid", "cylinder", "torus"},
		// F02, k=5
		{"disc", "ring", "star", "hexagon", "diamond"},
		// F03, k=5
		{"leaf", "droplet", "crescent", "arch", "shell"},
		// F04, k=6 -- uniform
		{"pedestal", "pedestal", "pedestal", "pedestal", "pedestal", "pedestal"},
		// F05, k=6
		{"crown", "lantern", "wing", "spiral", "lattice", "banner"},
		// F06, k=5
		{"spire", "halo", "flame", "cloud", "beacon"},
	}
}
