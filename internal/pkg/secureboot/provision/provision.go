// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package provision implements offline preparation of the boot gate artifacts.
package provision

import (
	"bytes"
	"fmt"

	"github.com/cloudflare/circl/sign"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/secret"
)

// Artifacts is the set of blobs installed on the boot media.
type Artifacts struct {
	Digest    []byte
	PublicKey []byte
	Signature []byte
}

// For returns the blob of the role.
func (a Artifacts) For(role artifact.Role) []byte {
	switch role {
	case artifact.RoleDigest:
		return a.Digest
	case artifact.RolePublicKey:
		return a.PublicKey
	case artifact.RoleSignature:
		return a.Signature
	default:
		panic(fmt.Sprintf("unknown artifact role %q", role))
	}
}

// Store returns an in-memory store serving the artifacts under names.
func (a Artifacts) Store(names artifact.Names, maxSize int64) *artifact.MemoryStore {
	blobs := make(map[string][]byte, len(artifact.Roles()))

	for _, role := range artifact.Roles() {
		blobs[names.For(role)] = a.For(role)
	}

	return artifact.NewMemoryStore(blobs, maxSize)
}

// GenerateKeyPair generates a signing key pair.
//
// The private key is returned in locked memory, the caller must release it.
func GenerateKeyPair(scheme sign.Scheme) ([]byte, *secret.Buffer, error) {
	pk, sk, err := scheme.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate %s key pair: %w", scheme.Name(), err)
	}

	return exportKeyPair(pk, sk)
}

// exportKeyPair moves the private key into a secret buffer and scrubs sk.
func exportKeyPair(pk sign.PublicKey, sk sign.PrivateKey) ([]byte, *secret.Buffer, error) {
	defer scrub(sk)

	publicKey, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	privateKey, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	buf, err := secret.NewFromBytes(privateKey)
	if err != nil {
		return nil, nil, err
	}

	return publicKey, buf, nil
}

// Sign signs digest with the private key.
//
// The signature is checked against the public key derived from the private
// key before it is returned.
func Sign(scheme sign.Scheme, privateKey *secret.Buffer, digest []byte) ([]byte, error) {
	if len(digest) == 0 {
		return nil, fmt.Errorf("refusing to sign an empty digest")
	}

	var sig []byte

	err := withPrivateKey(scheme, privateKey, func(sk sign.PrivateKey) error {
		sig = scheme.Sign(sk, digest, nil)

		if !scheme.Verify(sk.Public().(sign.PublicKey), digest, sig, nil) { //nolint:forcetypeassert
			return fmt.Errorf("%s signature failed self-verification", scheme.Name())
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return sig, nil
}

// PublicKey derives the public key of a private key.
func PublicKey(scheme sign.Scheme, privateKey *secret.Buffer) ([]byte, error) {
	var publicKey []byte

	err := withPrivateKey(scheme, privateKey, func(sk sign.PrivateKey) error {
		var err error

		publicKey, err = sk.Public().(sign.PublicKey).MarshalBinary() //nolint:forcetypeassert

		return err
	})
	if err != nil {
		return nil, err
	}

	return publicKey, nil
}

// Verify checks the artifacts with the scheme.
func Verify(scheme sign.Scheme, a Artifacts) error {
	pk, err := scheme.UnmarshalBinaryPublicKey(a.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to decode public key: %w", err)
	}

	if len(a.Signature) != scheme.SignatureSize() || !scheme.Verify(pk, a.Digest, a.Signature, nil) {
		return fmt.Errorf("signature does not match the digest")
	}

	return nil
}

// Equal reports whether two artifact sets are identical.
func (a Artifacts) Equal(other Artifacts) bool {
	return bytes.Equal(a.Digest, other.Digest) &&
		bytes.Equal(a.PublicKey, other.PublicKey) &&
		bytes.Equal(a.Signature, other.Signature)
}
