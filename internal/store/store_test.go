// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/musealliance/installation-controller/internal/slip"
)

type fakeRemote struct {
	mu       sync.Mutex
	fail     bool
	uploaded []string
}

func (f *fakeRemote) Upload(slipUUID string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errUploadFailed
	}
	f.uploaded = append(f.uploaded, slipUUID)
	return nil
}

var errUploadFailed = &uploadErr{"forced upload failure"}

type uploadErr struct{ msg string }

func (e *uploadErr) Error() string { return e.msg }

func testRecord(uuid string) slip.Record {
	return slip.Record{
		SlipUUID:   uuid,
		FigurineID: 1,
		Title:      "Curious Fox",
		Paragraph1: "p1",
		Paragraph2: "p2",
	}
}

func TestSaveWritesLocalFileAndUploads(t *testing.T) {
	dir := t.TempDir()
	remote := &fakeRemote{}
	s, err := New(dir, remote)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Save(testRecord("slip-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "slip-1.json"))
	if err != nil {
		t.Fatalf("reading persisted slip: %v", err)
	}
	var rec slip.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !rec.Uploaded {
		t.Fatalf("expected uploaded=true after successful remote upload")
	}
	if len(remote.uploaded) != 1 || remote.uploaded[0] != "slip-1" {
		t.Fatalf("expected one upload for slip-1, got %v", remote.uploaded)
	}
}

func TestSaveQueuesPendingOnUploadFailure(t *testing.T) {
	dir := t.TempDir()
	remote := &fakeRemote{fail: true}
	s, err := New(dir, remote)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Save(testRecord("slip-2")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "slip-2.json"))
	if err != nil {
		t.Fatalf("reading persisted slip: %v", err)
	}
	var rec slip.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Uploaded {
		t.Fatalf("expected uploaded=false after a failed upload")
	}

	pending, err := os.ReadFile(filepath.Join(dir, pendingIndexFile))
	if err != nil {
		t.Fatalf("reading pending index: %v", err)
	}
	var uuids []string
	if err := json.Unmarshal(pending, &uuids); err != nil {
		t.Fatalf("decode pending index: %v", err)
	}
	if len(uuids) != 1 || uuids[0] != "slip-2" {
		t.Fatalf("expected slip-2 queued as pending, got %v", uuids)
	}
}

func TestFlushPendingRetriesAndClearsIndex(t *testing.T) {
	dir := t.TempDir()
	remote := &fakeRemote{fail: true}
	s, err := New(dir, remote)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Save(testRecord("slip-3")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	remote.fail = false
	if err := s.FlushPending(); err != nil {
		t.Fatalf("FlushPending: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "slip-3.json"))
	if err != nil {
		t.Fatalf("reading persisted slip: %v", err)
	}
	var rec slip.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !rec.Uploaded {
		t.Fatalf("expected uploaded=true after flush succeeds")
	}

	pending, err := os.ReadFile(filepath.Join(dir, pendingIndexFile))
	if err != nil {
		t.Fatalf("reading pending index: %v", err)
	}
	var uuids []string
	if err := json.Unmarshal(pending, &uuids); err != nil {
		t.Fatalf("decode pending index: %v", err)
	}
	if len(uuids) != 0 {
		t.Fatalf("expected empty pending index after successful flush, got %v", uuids)
	}
}

func TestSaveWithNilRemoteAlwaysQueuesPending(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Save(testRecord("slip-4")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	pending, err := os.ReadFile(filepath.Join(dir, pendingIndexFile))
	if err != nil {
		t.Fatalf("reading pending index: %v", err)
	}
	var uuids []string
	if err := json.Unmarshal(pending, &uuids); err != nil {
		t.Fatalf("decode pending index: %v", err)
	}
	if len(uuids) != 1 || uuids[0] != "slip-4" {
		t.Fatalf("expected slip-4 queued as pending in offline mode, got %v", uuids)
	}
}
