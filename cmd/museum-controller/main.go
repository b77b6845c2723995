// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Command museum-controller is the installation's single entrypoint: it
// loads configuration, bootstraps the three owned peripherals (RFID
// reader, LED matrix, thermal printer), wires the content client and
// slip store, and runs the orchestrator until SIGTERM/SIGINT.
//
// Grounded on bobbydeveaux-starbucks-mugs's cmd/agent/main.go (slog
// JSON logging, context-scoped run with graceful signal shutdown) and
// the teacher's periph-info mainImpl()/os.Exit(code) pattern for the
// distinct startup exit codes spec §6 requires.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/gousb"

	"github.com/musealliance/installation-controller/internal/catalog"
	"github.com/musealliance/installation-controller/internal/config"
	"github.com/musealliance/installation-controller/internal/content"
	"github.com/musealliance/installation-controller/internal/device"
	"github.com/musealliance/installation-controller/internal/display"
	"github.com/musealliance/installation-controller/internal/errs"
	"github.com/musealliance/installation-controller/internal/orchestrator"
	"github.com/musealliance/installation-controller/internal/printer"
	"github.com/musealliance/installation-controller/internal/rfid"
	"github.com/musealliance/installation-controller/internal/slip"
	"github.com/musealliance/installation-controller/internal/store"
	"github.com/musealliance/installation-controller/internal/transport"
)

// Exit codes per spec §6.
const (
	exitOK                 = 0
	exitDeviceUnavailable  = 2
	exitCatalogLoadFailure = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(nil, os.Args[1:])
	if err != nil {
		logger.Error("configuration load failed", slog.Any("error", err))
		return exitDeviceUnavailable
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("catalog load failed", slog.String("path", cfg.CatalogPath), slog.Any("error", err))
		return exitCatalogLoadFailure
	}

	fallback, err := loadFallback(cfg.FallbackPath)
	if err != nil {
		logger.Error("fallback table load failed", slog.String("path", cfg.FallbackPath), slog.Any("error", err))
		return exitCatalogLoadFailure
	}

	var rfidCtrl *rfid.Controller
	var dispCtrl *display.Controller
	var printerSink *printer.USBSink
	var printerAdapter *printer.Adapter

	peripherals := []device.Peripheral{
		{
			Name:  "rfid",
			Fatal: true,
			Init: func() error {
				candidates, err := transport.List()
				if err != nil {
					return err
				}
				c, err := rfid.Open(candidates, cfg.Region, cfg.PowerCenti)
				if err != nil {
					return err
				}
				rfidCtrl = c
				return nil
			},
		},
		{
			Name:  "display",
			Fatal: false,
			Init: func() error {
				c, err := openDisplay()
				if err != nil {
					return err
				}
				dispCtrl = c
				return nil
			},
		},
		{
			Name:  "printer",
			Fatal: !cfg.NoPrint,
			Init: func() error {
				if cfg.NoPrint {
					return nil
				}
				sink, err := printer.OpenUSBSink(gousb.ID(cfg.PrinterVendorID), gousb.ID(cfg.PrinterProductID), cfg.PrinterUSBConfig)
				if err != nil {
					return err
				}
				printerSink = sink
				printerAdapter = printer.New(sink, slip.DefaultPrinterWidthDots)
				return nil
			},
		},
	}

	result, err := device.Bootstrap(peripherals)
	for name, ferr := range result.Failed {
		logger.Warn("peripheral failed to load", slog.String("peripheral", name), slog.Any("error", ferr))
	}
	if err != nil {
		logger.Error("fatal peripheral failure at startup", slog.Any("error", err))
		return exitDeviceUnavailable
	}
	logger.Info("peripherals loaded", slog.Any("loaded", result.Loaded))

	defer func() {
		if rfidCtrl != nil {
			_ = rfidCtrl.Close()
		}
		if dispCtrl != nil {
			_ = dispCtrl.Close()
		}
		if printerSink != nil {
			_ = printerSink.Close()
		}
	}()

	limiter := content.NewRateLimiter(cfg.RateLimitPath, cfg.ContentRPMLimit, cfg.ContentDaily, 0)
	contentClient := content.NewClient(&http.Client{Timeout: 30 * time.Second}, cfg.ContentEndpoint, cfg.ContentAPIKey, cfg.ContentModel, limiter, fallback)

	var remote store.RecordStore
	if cfg.RecordStoreURL != "" {
		remote = &store.HTTPRecordStore{Client: &http.Client{Timeout: 10 * time.Second}, Endpoint: cfg.RecordStoreURL, APIKey: cfg.RecordStoreKey}
	}
	slipStore, err := store.New(cfg.OutputDir, remote)
	if err != nil {
		logger.Error("slip store init failed", slog.Any("error", err))
		return exitDeviceUnavailable
	}

	composer := slip.NewComposer(cfg.GalleryBaseURL)

	orch := orchestrator.New(rfidCtrl, dispSetter(dispCtrl), printerAdapter, cat, contentClient, composer, slipStore, orchestrator.Config{
		TargetTags:        cfg.TargetTags,
		InventoryTimeout:  cfg.InventoryTimeout,
		RemoveTimeout:     cfg.RemoveTimeout,
		PrintEnabled:      !cfg.NoPrint,
		InventoryCooldown: cfg.PollInterval,
	})
	orch.Log = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("museum-controller starting", slog.String("region", string(cfg.Region)), slog.Bool("no_print", cfg.NoPrint))
	if err := orch.Run(ctx); err != nil {
		logger.Error("orchestrator exited with error", slog.Any("error", err))
		return exitDeviceUnavailable
	}
	logger.Info("museum-controller exited cleanly")
	return exitOK
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrConfigurationError, err)
	}
	defer f.Close()
	return catalog.Load(f)
}

func loadFallback(path string) (*content.FallbackTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrConfigurationError, err)
	}
	defer f.Close()
	return content.LoadFallback(f)
}

// openDisplay enumerates serial candidates and probes each with the
// display's line protocol (distinct from the RFID reader's binary frame
// protocol, so the two controllers never claim the same port).
func openDisplay() (*display.Controller, error) {
	candidates, err := transport.List()
	if err != nil {
		return nil, err
	}
	port, name, err := transport.Probe(candidates, probeDisplay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDeviceUnavailable, err)
	}
	opener := func() (transport.Port, error) { return transport.Open(name) }
	return display.New(port, opener), nil
}

func probeDisplay(p transport.Port) bool {
	_ = p.SetReadTimeout(250 * time.Millisecond)
	if _, err := p.Write([]byte("PATTERN BORED\n")); err != nil {
		return false
	}
	buf := make([]byte, 64)
	n, err := p.Read(buf)
	if err != nil || n == 0 {
		return false
	}
	reply := strings.TrimSpace(string(buf[:n]))
	return reply == "OK" || strings.HasPrefix(reply, "ERR")
}

// dispSetter adapts a possibly-nil *display.Controller to
// orchestrator.DisplaySetter: a nil *display.Controller must become a nil
// interface value, not a non-nil interface wrapping a nil pointer, or the
// orchestrator's "o.Display == nil" advisory check would never trigger.
func dispSetter(c *display.Controller) orchestrator.DisplaySetter {
	if c == nil {
		return nil
	}
	return c
}
