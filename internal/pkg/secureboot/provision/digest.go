// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package provision

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// HashAlgorithm names the hash used to measure a boot image.
type HashAlgorithm string

// Hash algorithms.
const (
	SHA256 HashAlgorithm = "sha256"
	SHA512 HashAlgorithm = "sha512"
	BLAKE3 HashAlgorithm = "blake3"
)

// HashAlgorithms lists the supported hash algorithms.
func HashAlgorithms() []HashAlgorithm {
	return []HashAlgorithm{SHA256, SHA512, BLAKE3}
}

// ParseHashAlgorithm parses a hash algorithm name.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch h := HashAlgorithm(strings.ToLower(s)); h {
	case SHA256, SHA512, BLAKE3:
		return h, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", s)
	}
}

func (h HashAlgorithm) new() hash.Hash {
	switch h {
	case SHA512:
		return sha512.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha256.New()
	}
}

// Digest measures the contents of r.
func Digest(r io.Reader, h HashAlgorithm) ([]byte, error) {
	if _, err := ParseHashAlgorithm(string(h)); err != nil {
		return nil, err
	}

	hasher := h.new()

	if _, err := io.Copy(hasher, r); err != nil {
		return nil, fmt.Errorf("failed to hash image: %w", err)
	}

	return hasher.Sum(nil), nil
}

// DigestFile measures the file at path.
func DigestFile(path string, h HashAlgorithm) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	return Digest(f, h)
}
