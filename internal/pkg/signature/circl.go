// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package signature

import (
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/schemes"
	"github.com/siderolabs/gen/xslices"
)

// postQuantum lists the schemes the gate accepts.
//
// Classical-only schemes known to circl (Ed25519, Ed448) are never enabled.
var postQuantum = []string{
	"ML-DSA-44",
	"ML-DSA-65",
	"ML-DSA-87",
	"Dilithium2",
	"Dilithium3",
	"Dilithium5",
	"Ed25519-Dilithium2",
	"Ed448-Dilithium3",
}

// Circl is the Primitive backed by github.com/cloudflare/circl.
//
// Circl is stateless, the zero value is ready to use.
type Circl struct{}

// Algorithms returns the enabled algorithm identifiers.
func (Circl) Algorithms() []string {
	return xslices.Filter(postQuantum, func(id string) bool {
		return schemes.ByName(id) != nil
	})
}

// Scheme returns the circl scheme of an enabled algorithm.
func (Circl) Scheme(id string) (sign.Scheme, error) {
	for _, name := range postQuantum {
		if !strings.EqualFold(name, id) {
			continue
		}

		if scheme := schemes.ByName(name); scheme != nil {
			return scheme, nil
		}
	}

	return nil, fmt.Errorf("signature algorithm %q is not enabled", id)
}

// IsEnabled implements Primitive.
func (c Circl) IsEnabled(id string) bool {
	_, err := c.Scheme(id)

	return err == nil
}

// PublicKeySize implements Primitive.
func (c Circl) PublicKeySize(id string) int {
	scheme, err := c.Scheme(id)
	if err != nil {
		return 0
	}

	return scheme.PublicKeySize()
}

// SignatureSize implements Primitive.
func (c Circl) SignatureSize(id string) int {
	scheme, err := c.Scheme(id)
	if err != nil {
		return 0
	}

	return scheme.SignatureSize()
}

// Verify implements Primitive.
//
// Any failure, including a malformed public key, reports false.
func (c Circl) Verify(id string, message, publicKey, signature []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	scheme, err := c.Scheme(id)
	if err != nil {
		return false
	}

	pk, err := scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return false
	}

	return scheme.Verify(pk, message, signature, nil)
}
