// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package orchestrator implements the installation controller's state
// machine (C11): the single control task multiplexing the RFID inventory
// worker, the display, the printer, the content client, and the slip
// store through the BORED/THINKING/PRINTING/REMOVE_WAIT/ERROR cycle.
//
// Grounded on the teacher's own cooperative-worker idiom (a control loop
// driving short-lived, bounded-timeout device operations; inventory passes
// are called synchronously from the loop, with no separate poller
// goroutine or result channel) and on
// rusq-thermoprint's small printer state machine for the retry-once
// policy on PRINTING failure.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/musealliance/installation-controller/internal/catalog"
	"github.com/musealliance/installation-controller/internal/content"
	"github.com/musealliance/installation-controller/internal/display"
	"github.com/musealliance/installation-controller/internal/errs"
	"github.com/musealliance/installation-controller/internal/printer"
	"github.com/musealliance/installation-controller/internal/rfid"
	"github.com/musealliance/installation-controller/internal/slip"
)

// State is one of the five orchestrator states per spec §4.11.
type State int

const (
	StateBored State = iota
	StateThinking
	StatePrinting
	StateRemoveWait
	StateError
)

func (s State) String() string {
	switch s {
	case StateBored:
		return "BORED"
	case StateThinking:
		return "THINKING"
	case StatePrinting:
		return "PRINTING"
	case StateRemoveWait:
		return "REMOVE_WAIT"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Inventory is the RFID controller's surface the orchestrator depends
// on, narrowed so tests can supply a fake without a real serial device.
type Inventory interface {
	ReadTags(ctx context.Context, targetN int) (rfid.Result, error)
}

// DisplaySetter is the LED matrix controller's surface the orchestrator
// depends on.
type DisplaySetter interface {
	SetPattern(p display.Pattern) error
}

// ContentClient is the text-generation client's surface the orchestrator
// depends on.
type ContentClient interface {
	Generate(ctx context.Context, profile content.Profile) (content.Result, error)
}

// SlipStore is the slip persistence surface the orchestrator depends on.
type SlipStore interface {
	Save(rec slip.Record) error
	FlushPending() error
}

// Config is the orchestrator's runtime configuration, spec §4.11's
// configuration table.
type Config struct {
	TargetTags        int
	InventoryTimeout  time.Duration
	RemovePollWindow  time.Duration
	RemoveTimeout     time.Duration
	PrintEnabled      bool
	AckInterval       time.Duration
	InventoryCooldown time.Duration
}

const (
	defaultRemovePollWindow  = 200 * time.Millisecond
	defaultAckInterval       = 3 * time.Second
	defaultInventoryCooldown = 500 * time.Millisecond
)

// DefaultConfig fills in spec defaults for any zero field in cfg.
func DefaultConfig(cfg Config) Config {
	if cfg.TargetTags <= 0 {
		cfg.TargetTags = 6
	}
	if cfg.InventoryTimeout <= 0 {
		cfg.InventoryTimeout = 120 * time.Second
	}
	if cfg.RemovePollWindow <= 0 {
		cfg.RemovePollWindow = defaultRemovePollWindow
	}
	if cfg.RemoveTimeout <= 0 {
		cfg.RemoveTimeout = 20 * time.Second
	}
	if cfg.AckInterval <= 0 {
		cfg.AckInterval = defaultAckInterval
	}
	if cfg.InventoryCooldown <= 0 {
		cfg.InventoryCooldown = defaultInventoryCooldown
	}
	return cfg
}

// Orchestrator drives the installation's per-visit cycle.
type Orchestrator struct {
	Inventory Inventory
	Display   DisplaySetter
	Printer   *printer.Adapter
	Catalog   *catalog.Catalog
	Content   ContentClient
	Composer  *slip.Composer
	Store     SlipStore
	Config    Config
	Log       *slog.Logger

	// NewUUID and Now are overridable for deterministic tests; they
	// default to uuid.NewString and time.Now.
	NewUUID func() string
	Now     func() time.Time

	// OnTransition, if set, is called every time the orchestrator enters
	// a new state, letting tests assert the transition sequence against
	// invariant #8 without scraping logs.
	OnTransition func(State)

	state       State
	pendingSlip slip.Record
	// afterError is where runError returns to once the ERROR pulse ends.
	// It defaults to StateBored (unregistered tag, content failure) but a
	// second printer failure sets it to StateRemoveWait, since that
	// failure already produced and persisted a (printed=false) slip and
	// the visitor's figurine is still on the pad.
	afterError State
}

// New returns a ready-to-run Orchestrator with spec defaults applied to
// any zero Config field.
func New(inv Inventory, disp DisplaySetter, p *printer.Adapter, cat *catalog.Catalog, cc ContentClient, composer *slip.Composer, store SlipStore, cfg Config) *Orchestrator {
	return &Orchestrator{
		Inventory: inv,
		Display:   disp,
		Printer:   p,
		Catalog:   cat,
		Content:   cc,
		Composer:  composer,
		Store:     store,
		Config:    DefaultConfig(cfg),
		Log:       slog.Default(),
		NewUUID:   uuid.NewString,
		Now:       time.Now,
	}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State { return o.state }

// Run drives the state machine until ctx is cancelled. It never returns
// a non-nil error for recoverable conditions (per spec §7 "the service's
// job is to stay up"); it only returns when ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	var tags []rfid.Tag
	for ctx.Err() == nil {
		switch o.state {
		case StateBored:
			// Each cycle starts in BORED: retry any slips still pending upload.
			if err := o.Store.FlushPending(); err != nil {
				o.logf("pending slip flush failed: %v", err)
			}
			tags = o.runBored(ctx)
		case StateThinking:
			o.runThinking(ctx, tags)
		case StatePrinting:
			o.runPrinting(ctx)
		case StateRemoveWait:
			o.runRemoveWait(ctx)
		case StateError:
			o.runError(ctx)
		}
	}
	return nil
}

// enter runs the state's entry action (display pattern per spec §4.11)
// and records the transition. Display failures are advisory: logged, not
// fatal (per spec §7 "advisory for display").
func (o *Orchestrator) enter(ctx context.Context, s State) {
	o.state = s
	if o.OnTransition != nil {
		o.OnTransition(s)
	}
	var pattern display.Pattern
	switch s {
	case StateBored:
		pattern = display.PatternBored
	case StateThinking:
		pattern = display.PatternThinking
	case StatePrinting:
		pattern = display.PatternFinish
	case StateRemoveWait:
		pattern = display.PatternRemoveFigure
	case StateError:
		pattern = display.PatternError
	}
	if o.Display == nil {
		return
	}
	if err := o.Display.SetPattern(pattern); err != nil {
		o.logf("display set pattern %s failed: %v", pattern, err)
	}
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Log == nil {
		return
	}
	o.Log.Warn(fmt.Sprintf(format, args...))
}

// runBored starts (implicitly, via Inventory.ReadTags) the inventory
// worker and blocks until TARGET_TAGS distinct EPCs are seen or
// INVENTORY_TIMEOUT elapses, in which case it cools down briefly and
// retries, per spec §4.11.
func (o *Orchestrator) runBored(ctx context.Context) []rfid.Tag {
	o.enter(ctx, StateBored)
	for ctx.Err() == nil {
		passCtx, cancel := context.WithTimeout(ctx, o.Config.InventoryTimeout)
		res, err := o.Inventory.ReadTags(passCtx, o.Config.TargetTags)
		cancel()
		if err != nil {
			o.logf("inventory pass failed: %v", err)
		} else if len(res.Tags) >= o.Config.TargetTags {
			o.state = StateThinking
			return res.Tags
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.Config.InventoryCooldown):
		}
	}
	return nil
}

// runThinking resolves answers, requests content, builds the slip record
// (figurine id included), then moves to PRINTING; composing and persisting
// the slip happen in runPrinting. Any unregistered EPC aborts the
// cycle to ERROR with no slip persisted (spec §7/§8 scenario S5).
func (o *Orchestrator) runThinking(ctx context.Context, tags []rfid.Tag) {
	o.enter(ctx, StateThinking)

	answers, err := o.resolveAnswers(tags)
	if err != nil {
		o.logf("thinking: %v", err)
		o.state = StateError
		return
	}

	titles := [6]string{}
	for i, a := range answers {
		titles[i] = o.Catalog.Title(a.Question, a.Index)
	}

	result, err := o.Content.Generate(ctx, content.Profile{Answers: answers, Titles: titles})
	if err != nil {
		o.logf("thinking: content generate: %v", err)
		o.state = StateError
		return
	}

	rec, err := slip.BuildRecord(o.NewUUID(), answers, result.Paragraphs.Paragraph1, result.Paragraphs.Paragraph2, result.UsedFallback, o.Catalog, o.Now().UTC().Format(time.RFC3339))
	if err != nil {
		o.logf("thinking: build slip: %v", err)
		o.state = StateError
		return
	}

	o.pendingSlip = rec
	o.state = StatePrinting
}

// resolveAnswers maps each tag's EPC to a catalog answer and requires
// the result to cover all six questions. When two tags answer the same
// question, the later tag's answer replaces the earlier one.
func (o *Orchestrator) resolveAnswers(tags []rfid.Tag) ([6]catalog.Answer, error) {
	var answers [6]catalog.Answer
	var seen [6]bool
	for _, t := range tags {
		a, ok := o.Catalog.AnswerOf(t.EPC)
		if !ok {
			return answers, fmt.Errorf("%w: %s", errs.ErrUnregisteredTag, t.EPC)
		}
		answers[a.Question] = a
		seen[a.Question] = true
	}
	for _, ok := range seen {
		if !ok {
			return answers, fmt.Errorf("%w: incomplete answer set", errs.ErrUnregisteredTag)
		}
	}
	return answers, nil
}

// runPrinting composes and prints the pending slip (unless PRINT_ENABLED
// is false, a paper-saving dry run), retries once on printer failure,
// persists/uploads the slip via C10, and moves to REMOVE_WAIT. A second
// printer failure still persists the slip, with printed=false, displays
// ERROR briefly, and proceeds to REMOVE_WAIT rather than BORED (spec §7
// PrinterFailure) -- the figurine is still on the pad either way.
func (o *Orchestrator) runPrinting(ctx context.Context) {
	o.enter(ctx, StatePrinting)
	rec := o.pendingSlip

	if o.Config.PrintEnabled && o.Printer != nil {
		if err := o.Composer.Compose(o.Printer, rec); err != nil {
			o.logf("printing: first attempt failed: %v", err)
			o.Printer.Reset()
			if err := o.Composer.Compose(o.Printer, rec); err != nil {
				o.logf("printing: retry failed: %v", err)
				rec.Printed = false
				if err := o.Store.Save(rec); err != nil {
					o.logf("printing: slip persistence failed: %v", err)
				}
				o.afterError = StateRemoveWait
				o.state = StateError
				return
			}
		}
		rec.Printed = true
	}

	if err := o.Store.Save(rec); err != nil {
		o.logf("printing: slip persistence failed: %v", err)
	}
	o.pendingSlip = rec
	o.state = StateRemoveWait
}

// runRemoveWait polls for tag presence until two consecutive empty
// passes debounce a clear removal, or REMOVE_TIMEOUT elapses, per spec
// §4.11/§8 scenario S6.
func (o *Orchestrator) runRemoveWait(ctx context.Context) {
	o.enter(ctx, StateRemoveWait)
	deadline := o.Now().Add(o.Config.RemoveTimeout)
	consecutiveEmpty := 0

	for ctx.Err() == nil {
		if o.Now().After(deadline) {
			o.state = StateBored
			return
		}
		pollCtx, cancel := context.WithTimeout(ctx, o.Config.RemovePollWindow)
		res, err := o.Inventory.ReadTags(pollCtx, 1)
		cancel()
		if err != nil {
			o.logf("remove-wait poll failed: %v", err)
			continue
		}
		if len(res.Tags) == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= 2 {
				o.state = StateBored
				return
			}
		} else {
			consecutiveEmpty = 0
		}
	}
}

// runError holds ERROR briefly (the "ack interval") then returns to
// BORED, or to REMOVE_WAIT when the error originated from a second
// printer failure on an already-persisted slip (spec §7 PrinterFailure).
func (o *Orchestrator) runError(ctx context.Context) {
	o.enter(ctx, StateError)
	select {
	case <-ctx.Done():
	case <-time.After(o.Config.AckInterval):
	}
	next := o.afterError
	o.afterError = StateBored
	if next == StateRemoveWait {
		o.state = StateRemoveWait
		return
	}
	o.state = StateBored
}
