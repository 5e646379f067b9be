// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gate

import (
	"fmt"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/signature"
)

// Verifier binds a signature algorithm to size-checked verification.
//
// A Verifier is owned by its caller, there is no shared verification state.
type Verifier struct {
	primitive  signature.Primitive
	descriptor signature.Descriptor
}

// NewVerifier creates a Verifier for the algorithm id.
//
// It fails with ErrUnsupportedAlgorithm if the primitive doesn't provide the algorithm.
func NewVerifier(primitive signature.Primitive, id string) (*Verifier, error) {
	descriptor, ok := signature.Describe(primitive, id)
	if !ok {
		return nil, &Error{
			Reason: ReasonUnsupportedAlgorithm,
			Err:    fmt.Errorf("algorithm %q is not enabled", id),
		}
	}

	if descriptor.PublicKeySize <= 0 || descriptor.SignatureSize <= 0 {
		return nil, &Error{
			Reason: ReasonUnsupportedAlgorithm,
			Err:    fmt.Errorf("algorithm %q reports invalid sizes", id),
		}
	}

	return &Verifier{
		primitive:  primitive,
		descriptor: descriptor,
	}, nil
}

// Descriptor returns the algorithm descriptor.
func (v *Verifier) Descriptor() signature.Descriptor {
	return v.descriptor
}

// Check verifies sig over digest with publicKey.
//
// Artifacts of the wrong size are rejected without invoking the primitive.
// Inputs are never modified.
func (v *Verifier) Check(digest, publicKey, sig []byte) Decision {
	if len(publicKey) != v.descriptor.PublicKeySize {
		return Rejected(ReasonSizeMismatch, artifact.RolePublicKey)
	}

	if len(sig) != v.descriptor.SignatureSize {
		return Rejected(ReasonSizeMismatch, artifact.RoleSignature)
	}

	if v.verify(digest, publicKey, sig) {
		return Verified()
	}

	return Rejected(ReasonVerificationFailed, "")
}

func (v *Verifier) verify(digest, publicKey, sig []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	return v.primitive.Verify(v.descriptor.ID, digest, publicKey, sig)
}
