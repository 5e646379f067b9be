// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package artifact

// Buffer is an owned, bounded byte sequence loaded from a store.
//
// Buffers hold non-secret material, releasing one drops the reference to the
// contents. A Buffer can be released only once, reading a released Buffer panics.
type Buffer struct {
	name      string
	data      []byte
	onRelease []func()
	released  bool
}

// NewBuffer wraps data into a Buffer, the Buffer takes ownership of data.
func NewBuffer(name string, data []byte) *Buffer {
	return &Buffer{
		name: name,
		data: data,
	}
}

// Name returns the name the buffer was loaded from.
func (b *Buffer) Name() string {
	return b.name
}

// Bytes returns the contents.
//
// The contents must not be modified or retained past Release.
func (b *Buffer) Bytes() []byte {
	if b.released {
		panic("artifact: read from released buffer " + b.name)
	}

	return b.data
}

// Len returns the length of the contents.
func (b *Buffer) Len() int {
	return len(b.data)
}

// OnRelease registers a callback to be run once the buffer is released.
func (b *Buffer) OnRelease(fn func()) {
	b.onRelease = append(b.onRelease, fn)
}

// Released reports whether the buffer was released.
func (b *Buffer) Released() bool {
	return b.released
}

// Release drops the contents.
//
// Releasing a buffer twice returns ErrReleased and has no other effect.
func (b *Buffer) Release() error {
	if b.released {
		return ErrReleased
	}

	b.released = true
	b.data = nil

	for _, fn := range b.onRelease {
		fn()
	}

	b.onRelease = nil

	return nil
}
