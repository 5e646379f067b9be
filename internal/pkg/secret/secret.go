// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package secret provides a buffer kind for private key material.
//
// The backing memory is mapped outside of the Go heap, locked into RAM and
// excluded from core dumps. The only way to release a Buffer overwrites its
// contents first, so secret material is never freed without being scrubbed.
package secret

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrEmpty is returned when a secret with no contents is requested.
var ErrEmpty = errors.New("secret: empty secret")

var (
	munlock = unix.Munlock
	munmap  = unix.Munmap
)

// Buffer holds secret key material.
//
// A Buffer must not be copied. Reading a released Buffer panics.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

// New allocates a zero-filled secret buffer of the given size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	if err = unix.Mlock(data); err != nil {
		unix.Munmap(data) //nolint:errcheck

		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	if err = unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data) //nolint:errcheck
		unix.Munmap(data)  //nolint:errcheck

		return nil, fmt.Errorf("secret: madvise failed: %w", err)
	}

	return &Buffer{data: data}, nil
}

// NewFromBytes moves source into a new secret buffer.
//
// The source slice is zeroed, the caller no longer holds the secret afterwards.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, ErrEmpty
	}

	b, err := New(len(source))
	if err != nil {
		Zero(source)

		return nil, err
	}

	copy(b.data, source)
	Zero(source)

	return b, nil
}

// ReadFile reads a secret key file into a secret buffer.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}

	return NewFromBytes(data)
}

// Bytes returns the secret contents.
//
// The returned slice aliases the locked region, it must not be retained past Release.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		panic("secret: read from released buffer")
	}

	return b.data
}

// Len returns the secret size, zero after release.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.data)
}

// Released reports whether the buffer was already released.
func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.released
}

// Release scrubs the contents and unmaps the memory.
//
// Release is idempotent.
func (b *Buffer) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil
	}

	b.released = true

	Zero(b.data)

	var err error

	if unlockErr := munlock(b.data); unlockErr != nil {
		err = fmt.Errorf("secret: munlock failed: %w", unlockErr)
	}

	if unmapErr := munmap(b.data); unmapErr != nil && err == nil {
		err = fmt.Errorf("secret: munmap failed: %w", unmapErr)
	}

	b.data = nil

	return err
}

// Close is an alias for Release.
func (b *Buffer) Close() error {
	return b.Release()
}

// Zero overwrites b with zeroes.
func Zero(b []byte) {
	clear(b)
}
