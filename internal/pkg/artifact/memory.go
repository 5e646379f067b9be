// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package artifact

import (
	"bytes"
	"fmt"
)

// MemoryStore serves artifacts from memory.
type MemoryStore struct {
	blobs   map[string][]byte
	maxSize int64
}

// NewMemoryStore creates a store serving a copy of blobs.
func NewMemoryStore(blobs map[string][]byte, maxSize int64) *MemoryStore {
	s := &MemoryStore{
		blobs:   make(map[string][]byte, len(blobs)),
		maxSize: maxSize,
	}

	for name, data := range blobs {
		s.blobs[name] = bytes.Clone(data)
	}

	return s
}

// Load implements Store.
//
// Every call returns a fresh copy, so released buffers never alias the store.
func (s *MemoryStore) Load(name string) (*Buffer, error) {
	data, ok := s.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	if err := checkSize(name, int64(len(data)), s.maxSize); err != nil {
		return nil, err
	}

	return NewBuffer(name, bytes.Clone(data)), nil
}
