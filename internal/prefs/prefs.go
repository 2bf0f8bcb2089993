// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prefs provides the durable client-side key/value store.
//
// The entire persisted client state is four keys: the selected conversation id,
// the backend user id, and the anonymous daily request count and date. A
// missing key always reads as the empty string and means "fresh session" -
// absence is never an error.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cospa-vn/cospa-tui/internal/util"
)

// The four persisted keys. Nothing else is ever written to the store.
const (
	KeyConversationID = "cospa_conversation_id"
	KeyUserID         = "cospa_user_id"
	KeyRequestCount   = "cospa_request_count"
	KeyRequestDate    = "cospa_request_date"
)

// Store is the durable key/value interface injected into the session
// controller and the rate limiter. Implementations must treat a missing key
// as the empty string.
type Store interface {
	Get(key string) string
	Set(key, value string) error
	Delete(key string) error
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore persists the key/value map as a JSON file with atomic writes.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFileStore creates a store backed by prefs.json under dir, loading any
// existing state. A missing or corrupt file starts a fresh session.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	s := &FileStore{
		path: filepath.Join(dir, "prefs.json"),
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(s.path)
	if err == nil {
		// Corrupt state is discarded rather than surfaced: the keys only
		// carry session conveniences, never data the user typed.
		_ = json.Unmarshal(raw, &s.data)
		if s.data == nil {
			s.data = make(map[string]string)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

// Get returns the stored value, or "" when absent.
func (s *FileStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// Set stores a value and persists the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flushLocked()
}

// Delete removes a key and persists the file. Deleting an absent key is a
// no-op that still succeeds.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(s.path, raw, 0644)
}

// =============================================================================
// IN-MEMORY STORE
// =============================================================================

// MemStore is a map-backed Store for tests.
type MemStore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]string)}
}

// Get returns the stored value, or "" when absent.
func (s *MemStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// Set stores a value.
func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Delete removes a key.
func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
