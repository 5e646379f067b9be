// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package provision

import (
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/dilithium/mode2"
	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/cloudflare/circl/sign/dilithium/mode5"
	"github.com/cloudflare/circl/sign/eddilithium2"
	"github.com/cloudflare/circl/sign/eddilithium3"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"github.com/siderolabs/bootgate/internal/pkg/secret"
)

// scrub overwrites a decoded private key in place.
//
// It reports false for key types it doesn't know how to clear.
// The Ed25519 half of the hybrid keys is an unexported slice, assigning the zero
// value drops the reference to it but can't overwrite its backing array.
func scrub(sk sign.PrivateKey) bool {
	switch k := sk.(type) {
	case *mldsa44.PrivateKey:
		*k = mldsa44.PrivateKey{}
	case *mldsa65.PrivateKey:
		*k = mldsa65.PrivateKey{}
	case *mldsa87.PrivateKey:
		*k = mldsa87.PrivateKey{}
	case *mode2.PrivateKey:
		*k = mode2.PrivateKey{}
	case *mode3.PrivateKey:
		*k = mode3.PrivateKey{}
	case *mode5.PrivateKey:
		*k = mode5.PrivateKey{}
	case *eddilithium2.PrivateKey:
		*k = eddilithium2.PrivateKey{}
	case *eddilithium3.PrivateKey:
		*k = eddilithium3.PrivateKey{}
	default:
		return false
	}

	return true
}

// withPrivateKey decodes the private key, passes it to fn and scrubs it afterwards.
func withPrivateKey(scheme sign.Scheme, privateKey *secret.Buffer, fn func(sign.PrivateKey) error) error {
	if privateKey.Len() != scheme.PrivateKeySize() {
		return fmt.Errorf("private key is %d bytes, %s expects %d", privateKey.Len(), scheme.Name(), scheme.PrivateKeySize())
	}

	sk, err := scheme.UnmarshalBinaryPrivateKey(privateKey.Bytes())
	if err != nil {
		return fmt.Errorf("failed to decode private key: %w", err)
	}

	defer scrub(sk)

	return fn(sk)
}
