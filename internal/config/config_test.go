// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package config

import (
	"flag"
	"testing"

	"github.com/musealliance/installation-controller/internal/rfid"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Region != rfid.RegionEU {
		t.Fatalf("expected default region EU, got %v", cfg.Region)
	}
	if cfg.TargetTags != defaultTargetTags {
		t.Fatalf("expected default target-tags %d, got %d", defaultTargetTags, cfg.TargetTags)
	}
	if cfg.PowerCenti != rfid.DefaultPowerCentiDBm {
		t.Fatalf("expected default power %d, got %d", rfid.DefaultPowerCentiDBm, cfg.PowerCenti)
	}
}

func TestLoadParsesFlags(t *testing.T) {
	args := []string{"--no-print", "--region", "US", "--power", "2000", "--target-tags", "4"}
	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), args)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.NoPrint {
		t.Fatalf("expected no-print=true")
	}
	if cfg.Region != rfid.RegionUS {
		t.Fatalf("expected region US, got %v", cfg.Region)
	}
	if cfg.PowerCenti != 2000 {
		t.Fatalf("expected power 2000, got %d", cfg.PowerCenti)
	}
	if cfg.TargetTags != 4 {
		t.Fatalf("expected target-tags 4, got %d", cfg.TargetTags)
	}
}

func TestLoadRejectsUnknownRegion(t *testing.T) {
	args := []string{"--region", "ZZ"}
	_, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), args)
	if err == nil {
		t.Fatalf("expected error for unknown region")
	}
}

func TestLoadRejectsNonPositiveTargetTags(t *testing.T) {
	args := []string{"--target-tags", "0"}
	_, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), args)
	if err == nil {
		t.Fatalf("expected error for non-positive target-tags")
	}
}

func TestLoadReadsEnvironmentVariables(t *testing.T) {
	t.Setenv("CONTENT_API_KEY", "secret-key")
	t.Setenv("CONTENT_RPM_LIMIT", "42")
	t.Setenv("OUTPUT_DIR", "/tmp/slips-test")

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ContentAPIKey != "secret-key" {
		t.Fatalf("expected CONTENT_API_KEY to be read, got %q", cfg.ContentAPIKey)
	}
	if cfg.ContentRPMLimit != 42 {
		t.Fatalf("expected CONTENT_RPM_LIMIT=42, got %d", cfg.ContentRPMLimit)
	}
	if cfg.OutputDir != "/tmp/slips-test" {
		t.Fatalf("expected OUTPUT_DIR to override default, got %q", cfg.OutputDir)
	}
}

func TestLoadParsesPrinterUSBIdsAsHex(t *testing.T) {
	t.Setenv("PRINTER_VENDOR_ID", "04b8")
	t.Setenv("PRINTER_PRODUCT_ID", "0e28")

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PrinterVendorID != 0x04b8 {
		t.Fatalf("expected vendor id 0x04b8, got %#x", cfg.PrinterVendorID)
	}
	if cfg.PrinterProductID != 0x0e28 {
		t.Fatalf("expected product id 0x0e28, got %#x", cfg.PrinterProductID)
	}
}

func TestLoadRejectsNonHexPrinterID(t *testing.T) {
	t.Setenv("PRINTER_VENDOR_ID", "not-hex")
	_, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err == nil {
		t.Fatalf("expected error for non-hex PRINTER_VENDOR_ID")
	}
}
