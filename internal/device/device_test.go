// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package device

import (
	"errors"
	"testing"

	"github.com/musealliance/installation-controller/internal/errs"
)

func TestBootstrapLoadsIndependentPeripheralsConcurrently(t *testing.T) {
	peripherals := []Peripheral{
		{Name: "rfid", Init: func() error { return nil }, Fatal: true},
		{Name: "display", Init: func() error { return nil }, Fatal: false},
		{Name: "printer", Init: func() error { return nil }, Fatal: true},
	}
	res, err := Bootstrap(peripherals)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(res.Loaded) != 3 {
		t.Fatalf("expected all 3 peripherals loaded, got %v", res.Loaded)
	}
}

func TestBootstrapAbortsOnFatalFailure(t *testing.T) {
	peripherals := []Peripheral{
		{Name: "rfid", Init: func() error { return errors.New("no port found") }, Fatal: true},
		{Name: "display", Init: func() error { return nil }, Fatal: false},
	}
	_, err := Bootstrap(peripherals)
	if err == nil {
		t.Fatalf("expected an error from a fatal peripheral failure")
	}
	if !errors.Is(err, errs.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestBootstrapToleratesNonFatalFailure(t *testing.T) {
	peripherals := []Peripheral{
		{Name: "rfid", Init: func() error { return nil }, Fatal: true},
		{Name: "display", Init: func() error { return errors.New("timeout") }, Fatal: false},
	}
	res, err := Bootstrap(peripherals)
	if err != nil {
		t.Fatalf("expected no fatal error, got %v", err)
	}
	if len(res.Loaded) != 1 || res.Loaded[0] != "rfid" {
		t.Fatalf("expected only rfid loaded, got %v", res.Loaded)
	}
	if res.Failed["display"] == nil {
		t.Fatalf("expected display recorded as failed")
	}
}

func TestBootstrapRespectsPrerequisiteOrdering(t *testing.T) {
	var order []string
	peripherals := []Peripheral{
		{Name: "b", Prerequisites: []string{"a"}, Init: func() error {
			order = append(order, "b")
			return nil
		}, Fatal: true},
		{Name: "a", Init: func() error {
			order = append(order, "a")
			return nil
		}, Fatal: true},
	}
	if _, err := Bootstrap(peripherals); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected a before b, got %v", order)
	}
}

func TestBootstrapSkipsDependentsOfFailedPrerequisite(t *testing.T) {
	peripherals := []Peripheral{
		{Name: "a", Init: func() error { return errors.New("boom") }, Fatal: false},
		{Name: "b", Prerequisites: []string{"a"}, Init: func() error { return nil }, Fatal: false},
	}
	res, err := Bootstrap(peripherals)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(res.Loaded) != 0 {
		t.Fatalf("expected nothing loaded, got %v", res.Loaded)
	}
	if res.Failed["b"] == nil {
		t.Fatalf("expected b recorded as failed due to skipped prerequisite")
	}
}

func TestExplodeStagesRejectsUnsatisfiedDependency(t *testing.T) {
	_, err := explodeStages([]Peripheral{
		{Name: "a", Prerequisites: []string{"missing"}},
	})
	if err == nil {
		t.Fatalf("expected error for unsatisfied dependency")
	}
}
