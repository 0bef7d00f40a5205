/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps the rollback trail of a play session: one encoded
// session snapshot per dialogue line shown, newest on top.
package history

import (
	"sync"
	"time"
)

// Snapshot is an opaque session blob; its size is estimated as len(Blob).
// Label is a short human hint (usually the dialogue text) for diagnostics.
type Snapshot struct {
	Label string
	Blob  []byte
	TS    time.Time
}

// Config caps memory use. Oldest snapshots are pruned first.
type Config struct {
	// MaxSnapshots limits the trail length (0 means the default).
	MaxSnapshots int
	// MaxBytes is a soft cap on the summed blob sizes (0 means the default).
	MaxBytes int
}

const (
	DefaultMaxSnapshots = 200
	DefaultMaxBytes     = 4 * 1024 * 1024
)

// Stack is safe for concurrent use.
type Stack struct {
	cfg        Config
	mu         sync.Mutex
	items      []Snapshot
	totalBytes int
}

func New(cfg Config) *Stack {
	if cfg.MaxSnapshots <= 0 {
		cfg.MaxSnapshots = DefaultMaxSnapshots
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Stack{cfg: cfg}
}

// Push records s on top of the trail and prunes the oldest entries beyond the caps.
// The newest snapshot is always kept, even when it alone exceeds MaxBytes.
func (h *Stack) Push(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.TS.IsZero() {
		s.TS = time.Now()
	}
	h.items = append(h.items, s)
	h.totalBytes += len(s.Blob)
	h.enforceCapsLocked()
}

// Pop removes and returns the newest snapshot.
func (h *Stack) Pop() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return Snapshot{}, false
	}
	s := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	h.totalBytes -= len(s.Blob)
	return s, true
}

// Peek returns the newest snapshot without removing it.
func (h *Stack) Peek() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return Snapshot{}, false
	}
	return h.items[len(h.items)-1], true
}

func (h *Stack) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Clear drops the whole trail, e.g. after a load.
func (h *Stack) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = nil
	h.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (h *Stack) Stats() (totalBytes int, snapshots int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalBytes, len(h.items)
}

func (h *Stack) enforceCapsLocked() {
	drop := 0
	if over := len(h.items) - h.cfg.MaxSnapshots; over > 0 {
		drop = over
	}
	bytes := h.totalBytes
	for i := 0; i < drop; i++ {
		bytes -= len(h.items[i].Blob)
	}
	for bytes > h.cfg.MaxBytes && drop < len(h.items)-1 {
		bytes -= len(h.items[drop].Blob)
		drop++
	}
	if drop == 0 {
		return
	}
	h.items = append([]Snapshot(nil), h.items[drop:]...)
	h.totalBytes = bytes
}
