// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package store implements the slip store (C10): append-only local
// persistence of slip records plus a best-effort upload to a remote
// record store, with a small pending-index flushed at the start of each
// cycle.
//
// Grounded on bobbydeveaux-starbucks-mugs's internal/queue upload-queue
// shape (local durable write first, remote push best-effort, idempotency
// key on retry) adapted from its agent-event queue to a one-file-per-slip
// log, per spec §4.10/§6.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/musealliance/installation-controller/internal/errs"
	"github.com/musealliance/installation-controller/internal/slip"
)

const pendingIndexFile = "pending.json"

// RecordStore is the remote upload target per spec §6: POST of the slip
// as a flat JSON row, idempotency key = slip_uuid.
type RecordStore interface {
	Upload(slipUUID string, body []byte) error
}

// HTTPRecordStore is a RecordStore backed by a single HTTP endpoint.
type HTTPRecordStore struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
}

// Upload POSTs body to Endpoint with an Idempotency-Key header.
func (s *HTTPRecordStore) Upload(slipUUID string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("store: %w: %v", errs.ErrUploadFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", slipUUID)
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("store: %w: %v", errs.ErrUploadFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("store: %w: status %d", errs.ErrUploadFailure, resp.StatusCode)
	}
	return nil
}

// Store is the local append-only slip log with best-effort remote upload.
type Store struct {
	mu     sync.Mutex
	dir    string
	remote RecordStore
}

// New returns a Store writing slip_uuid.json files under dir. remote may
// be nil, in which case every slip is left pending forever (offline mode
// per spec §6 "offline mode simply skips upload and queues for later").
func New(dir string, remote RecordStore) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: %w: %v", errs.ErrConfigurationError, err)
	}
	return &Store{dir: dir, remote: remote}, nil
}

// Save writes rec to disk as slip_uuid.json. If remote is configured, it
// then attempts an upload; on success rec.Uploaded is set true and the
// file is rewritten once to record that flip (the only permitted
// rewrite, per spec §6 "no file is ever rewritten except to flip
// uploaded to true"). On upload failure the slip is added to the
// pending index for a later flush.
func (s *Store) Save(rec slip.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeRecord(rec); err != nil {
		return err
	}

	if s.remote == nil {
		return s.addPending(rec.SlipUUID)
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: %w: %v", errs.ErrUploadFailure, err)
	}
	if err := s.remote.Upload(rec.SlipUUID, body); err != nil {
		return s.addPending(rec.SlipUUID)
	}

	rec.Uploaded = true
	return s.writeRecord(rec)
}

// FlushPending retries every slip in the pending index. Slips that
// upload successfully are removed from the index and rewritten with
// uploaded=true; slips that still fail remain pending. Called once at
// the start of each cycle per spec §4.10.
func (s *Store) FlushPending() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remote == nil {
		return nil
	}
	pending, err := s.loadPending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var stillPending []string
	for _, uuid := range pending {
		rec, err := s.readRecord(uuid)
		if err != nil {
			// A pending entry whose file vanished cannot be retried; drop it
			// rather than retry forever against a record that no longer exists.
			continue
		}
		body, err := json.Marshal(rec)
		if err != nil {
			stillPending = append(stillPending, uuid)
			continue
		}
		if err := s.remote.Upload(uuid, body); err != nil {
			stillPending = append(stillPending, uuid)
			continue
		}
		rec.Uploaded = true
		if err := s.writeRecord(rec); err != nil {
			stillPending = append(stillPending, uuid)
			continue
		}
	}
	return s.savePending(stillPending)
}

func (s *Store) recordPath(slipUUID string) string {
	return filepath.Join(s.dir, slipUUID+".json")
}

func (s *Store) writeRecord(rec slip.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode slip: %w", err)
	}
	tmp := s.recordPath(rec.SlipUUID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write slip: %w", err)
	}
	if err := os.Rename(tmp, s.recordPath(rec.SlipUUID)); err != nil {
		return fmt.Errorf("store: commit slip: %w", err)
	}
	return nil
}

func (s *Store) readRecord(slipUUID string) (slip.Record, error) {
	data, err := os.ReadFile(s.recordPath(slipUUID))
	if err != nil {
		return slip.Record{}, fmt.Errorf("store: read slip: %w", err)
	}
	var rec slip.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return slip.Record{}, fmt.Errorf("store: decode slip: %w", err)
	}
	return rec, nil
}

func (s *Store) pendingIndexPath() string {
	return filepath.Join(s.dir, pendingIndexFile)
}

func (s *Store) loadPending() ([]string, error) {
	data, err := os.ReadFile(s.pendingIndexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read pending index: %w", err)
	}
	var uuids []string
	if err := json.Unmarshal(data, &uuids); err != nil {
		return nil, fmt.Errorf("store: decode pending index: %w", err)
	}
	return uuids, nil
}

func (s *Store) savePending(uuids []string) error {
	if uuids == nil {
		uuids = []string{}
	}
	data, err := json.Marshal(uuids)
	if err != nil {
		return fmt.Errorf("store: encode pending index: %w", err)
	}
	tmp := s.pendingIndexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write pending index: %w", err)
	}
	return os.Rename(tmp, s.pendingIndexPath())
}

func (s *Store) addPending(slipUUID string) error {
	pending, err := s.loadPending()
	if err != nil {
		return err
	}
	for _, u := range pending {
		if u == slipUUID {
			return nil
		}
	}
	return s.savePending(append(pending, slipUUID))
}
