// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package signature provides the post-quantum signature primitive used by the boot gate.
package signature

import (
	"fmt"
)

// Primitive is a signature scheme provider.
//
// Verify must be a pure function of its inputs and must not retain them.
type Primitive interface {
	// IsEnabled reports whether the algorithm is available.
	IsEnabled(id string) bool
	// PublicKeySize returns the exact public key length of the algorithm.
	PublicKeySize(id string) int
	// SignatureSize returns the exact signature length of the algorithm.
	SignatureSize(id string) int
	// Verify checks the signature over message.
	Verify(id string, message, publicKey, signature []byte) bool
}

// Descriptor identifies a signature scheme and its artifact sizes.
type Descriptor struct {
	ID            string
	PublicKeySize int
	SignatureSize int
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s (public key %d bytes, signature %d bytes)", d.ID, d.PublicKeySize, d.SignatureSize)
}

// Describe returns the descriptor of an enabled algorithm.
func Describe(p Primitive, id string) (Descriptor, bool) {
	if !p.IsEnabled(id) {
		return Descriptor{}, false
	}

	return Descriptor{
		ID:            id,
		PublicKeySize: p.PublicKeySize(id),
		SignatureSize: p.SignatureSize(id),
	}, true
}
