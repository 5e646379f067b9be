// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package artifact implements retrieval of named blobs from the boot media.
package artifact

import (
	"errors"
	"fmt"

	"github.com/siderolabs/bootgate/internal/pkg/secureboot"
)

// Store errors.
var (
	ErrNotFound = errors.New("artifact not found")
	ErrIO       = errors.New("artifact read failed")
	ErrEmpty    = errors.New("artifact is empty")
	ErrTooLarge = errors.New("artifact exceeds maximum size")
	ErrReleased = errors.New("artifact buffer already released")
)

// Store retrieves named blobs.
//
// The returned buffer is owned by the caller, which must release it.
type Store interface {
	Load(name string) (*Buffer, error)
}

// Role is the part an artifact plays in a verification attempt.
type Role string

// Artifact roles.
const (
	RoleDigest    Role = "digest"
	RolePublicKey Role = "public-key"
	RoleSignature Role = "signature"
)

// Roles returns the artifact roles in load order.
func Roles() []Role {
	return []Role{RoleDigest, RolePublicKey, RoleSignature}
}

// Names maps roles to the blob names in the store.
type Names struct {
	Digest    string `yaml:"digest"`
	PublicKey string `yaml:"publicKey"`
	Signature string `yaml:"signature"`
}

// DefaultNames returns the well-known artifact names.
func DefaultNames() Names {
	return Names{
		Digest:    secureboot.DigestAsset,
		PublicKey: secureboot.PublicKeyAsset,
		Signature: secureboot.SignatureAsset,
	}
}

// For returns the blob name of the role.
func (n Names) For(role Role) string {
	switch role {
	case RoleDigest:
		return n.Digest
	case RolePublicKey:
		return n.PublicKey
	case RoleSignature:
		return n.Signature
	default:
		panic(fmt.Sprintf("unknown artifact role %q", role))
	}
}

func checkSize(name string, size, maxSize int64) error {
	switch {
	case size == 0:
		return fmt.Errorf("%s: %w", name, ErrEmpty)
	case size < 0:
		return fmt.Errorf("%s: invalid size %d: %w", name, size, ErrIO)
	case maxSize > 0 && size > maxSize:
		return fmt.Errorf("%s: %d bytes: %w", name, size, ErrTooLarge)
	}

	return nil
}
