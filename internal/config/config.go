// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package config assembles the controller's configuration from CLI flags
// and environment variables into one explicit struct built in main and
// threaded through constructors, per spec §9 ("dynamic module-level
// singletons ... become explicit context objects").
//
// Grounded on the teacher's cmd/* binaries, every one of which parses
// flag.* directly into local variables in main; .env loading via
// github.com/joho/godotenv is additive, matching the guiperry-HASHER /
// data-miner family's use of the same library for dev convenience.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/musealliance/installation-controller/internal/errs"
	"github.com/musealliance/installation-controller/internal/rfid"
)

// Config is the fully resolved configuration for one controller process.
type Config struct {
	// CLI-controlled
	NoPrint    bool
	Region     rfid.Region
	PowerCenti int
	TargetTags int

	// Orchestrator timing, spec §4.11 config table
	InventoryTimeout time.Duration
	PollInterval     time.Duration
	RemoveTimeout    time.Duration

	// Content client, from environment
	ContentAPIKey   string
	ContentModel    string
	ContentRPMLimit int
	ContentDaily    int

	// Remote record store, from environment
	RecordStoreURL string
	RecordStoreKey string

	// Local output directory for the slip log
	OutputDir string

	// Local data files and remote locations not named by the environment
	// variable list but required to bring the binary up; these have
	// sensible defaults for a single-installation deployment.
	CatalogPath     string
	FallbackPath    string
	ContentEndpoint string
	GalleryBaseURL  string
	RateLimitPath   string

	// Printer USB identity, overridable for whichever receipt printer
	// model an installation ships with.
	PrinterVendorID  uint16
	PrinterProductID uint16
	PrinterUSBConfig int
}

const (
	defaultTargetTags       = 6
	defaultInventoryTimeout = 120 * time.Second
	defaultPollInterval     = 30 * time.Millisecond
	defaultRemoveTimeout    = 20 * time.Second
	defaultOutputDir        = "./slips"
	defaultCatalogPath      = "./catalog.csv"
	defaultFallbackPath     = "./fallback.csv"
	defaultContentEndpoint  = "https://content.museum.example.org/v1/generate"
	defaultGalleryBaseURL   = "https://gallery.museum.example.org/view"
	defaultRateLimitPath    = "./content-ratelimit.json"

	// defaultPrinterVendorID/defaultPrinterProductID identify a generic
	// ESC/POS USB thermal receipt printer; installations with a different
	// model override via PRINTER_VENDOR_ID/PRINTER_PRODUCT_ID.
	defaultPrinterVendorID  = 0x04b8
	defaultPrinterProductID = 0x0202
	defaultPrinterUSBConfig = 1
)

// Load parses CLI flags from args (pass os.Args[1:] in main), loads a
// .env file if present (never an error if absent), reads environment
// variables, and returns the merged Config. fs lets tests supply an
// isolated *flag.FlagSet.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		fs = flag.NewFlagSet("museum-controller", flag.ContinueOnError)
	}

	noPrint := fs.Bool("no-print", false, "skip the printer (paper-saving dry run)")
	region := fs.String("region", string(rfid.DefaultRegion), "RFID regulatory region: EU, US, CN, IN, JP")
	power := fs.Int("power", rfid.DefaultPowerCentiDBm, "RFID transmit power in centi-dBm")
	targetTags := fs.Int("target-tags", defaultTargetTags, "number of distinct EPCs required to leave BORED")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w: %v", errs.ErrConfigurationError, err)
	}

	_ = godotenv.Load() // optional; absent .env is not an error

	r, err := parseRegion(*region)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		NoPrint:          *noPrint,
		Region:           r,
		PowerCenti:       *power,
		TargetTags:       *targetTags,
		InventoryTimeout: defaultInventoryTimeout,
		PollInterval:     defaultPollInterval,
		RemoveTimeout:    defaultRemoveTimeout,
		ContentAPIKey:    os.Getenv("CONTENT_API_KEY"),
		ContentModel:     os.Getenv("CONTENT_MODEL"),
		RecordStoreURL:   os.Getenv("RECORD_STORE_URL"),
		RecordStoreKey:   os.Getenv("RECORD_STORE_KEY"),
		OutputDir:        envOrDefault("OUTPUT_DIR", defaultOutputDir),
		CatalogPath:      envOrDefault("CATALOG_PATH", defaultCatalogPath),
		FallbackPath:     envOrDefault("FALLBACK_PATH", defaultFallbackPath),
		ContentEndpoint:  envOrDefault("CONTENT_ENDPOINT", defaultContentEndpoint),
		GalleryBaseURL:   envOrDefault("GALLERY_BASE_URL", defaultGalleryBaseURL),
		RateLimitPath:    envOrDefault("RATE_LIMIT_PATH", defaultRateLimitPath),
		PrinterUSBConfig: defaultPrinterUSBConfig,
	}

	cfg.ContentRPMLimit, err = envIntOrDefault("CONTENT_RPM_LIMIT", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.ContentDaily, err = envIntOrDefault("CONTENT_DAILY_LIMIT", 0)
	if err != nil {
		return Config{}, err
	}
	vendorID, err := envHexOrDefault("PRINTER_VENDOR_ID", defaultPrinterVendorID)
	if err != nil {
		return Config{}, err
	}
	productID, err := envHexOrDefault("PRINTER_PRODUCT_ID", defaultPrinterProductID)
	if err != nil {
		return Config{}, err
	}
	cfg.PrinterVendorID = uint16(vendorID)
	cfg.PrinterProductID = uint16(productID)

	if cfg.TargetTags <= 0 {
		return Config{}, fmt.Errorf("config: %w: target-tags must be positive", errs.ErrConfigurationError)
	}

	return cfg, nil
}

func parseRegion(s string) (rfid.Region, error) {
	switch rfid.Region(s) {
	case rfid.RegionEU, rfid.RegionUS, rfid.RegionCN, rfid.RegionIN, rfid.RegionJP:
		return rfid.Region(s), nil
	default:
		return "", fmt.Errorf("config: %w: unknown region %q", errs.ErrConfigurationError, s)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %w: %s=%q is not an integer", errs.ErrConfigurationError, key, v)
	}
	return n, nil
}

func envHexOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("config: %w: %s=%q is not a hex integer", errs.ErrConfigurationError, key, v)
	}
	return int(n), nil
}
