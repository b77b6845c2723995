// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package shape

import (
	"bytes"
	"testing"
)

var sixShapes = []string{"spire", "crown", "pedestal", "leaf", "disc", "cube"}

func TestComposeIsDeterministic(t *testing.T) {
	f1, err := Compose(sixShapes, 200)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	f2, err := Compose(sixShapes, 200)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !bytes.Equal(f1.Canonical(), f2.Canonical()) {
		t.Fatalf("expected byte-identical canonical form, got:\n%s\nvs\n%s", f1.Canonical(), f2.Canonical())
	}
}

func TestComposeLevelsAreCenteredAndStacked(t *testing.T) {
	f, err := Compose(sixShapes, 200)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(f.Levels) != 6 {
		t.Fatalf("want 6 levels, got %d", len(f.Levels))
	}
	maxWidth := f.CanvasWidth - 2*Padding
	for i, l := range f.Levels {
		center := l.X + l.Width/2
		wantCenter := Padding + maxWidth/2
		if diff := center - wantCenter; diff > 0.01 || diff < -0.01 {
			t.Fatalf("level %d not centered: center=%f want=%f", i, center, wantCenter)
		}
		if i > 0 {
			prev := f.Levels[i-1]
			if l.Y < prev.Y+prev.Height-0.001 {
				t.Fatalf("level %d overlaps previous level", i)
			}
		}
	}
}

func TestComposeRejectsWrongShapeCount(t *testing.T) {
	if _, err := Compose(sixShapes[:5], 100); err == nil {
		t.Fatalf("expected error for 5 shapes")
	}
}

func TestComposeRejectsUnknownShape(t *testing.T) {
	bad := append([]string{"not-a-shape"}, sixShapes[1:]...)
	if _, err := Compose(bad, 100); err == nil {
		t.Fatalf("expected error for unknown shape")
	}
}
