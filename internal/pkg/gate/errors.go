// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gate

import (
	"errors"
	"fmt"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
)

// Reason classifies why an attempt halted.
type Reason int

// Halt reasons.
const (
	ReasonNone Reason = iota
	ReasonUnsupportedAlgorithm
	ReasonArtifactLoadFailed
	ReasonSizeMismatch
	ReasonVerificationFailed
	ReasonChainLoadFailed
	ReasonInvalidConfig
)

// Sentinel errors matching each Reason with errors.Is.
var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	ErrArtifactLoadFailed   = errors.New("artifact load failed")
	ErrSizeMismatch         = errors.New("artifact size mismatch")
	ErrVerificationFailed   = errors.New("signature verification failed")
	ErrChainLoadFailed      = errors.New("chain load failed")
	ErrInvalidConfig        = errors.New("invalid gate configuration")
)

// String implements fmt.Stringer.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnsupportedAlgorithm:
		return "unsupported-algorithm"
	case ReasonArtifactLoadFailed:
		return "artifact-load-failed"
	case ReasonSizeMismatch:
		return "size-mismatch"
	case ReasonVerificationFailed:
		return "verification-failed"
	case ReasonChainLoadFailed:
		return "chain-load-failed"
	case ReasonInvalidConfig:
		return "invalid-config"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Category groups reasons by remediation path.
func (r Reason) Category() string {
	switch r {
	case ReasonArtifactLoadFailed:
		return "media"
	case ReasonChainLoadFailed:
		return "chain"
	case ReasonInvalidConfig:
		return "config"
	case ReasonNone:
		return "none"
	default:
		return "trust"
	}
}

// ExitCode is the process status reported for the reason.
func (r Reason) ExitCode() int {
	switch r {
	case ReasonNone:
		return 0
	case ReasonUnsupportedAlgorithm:
		return 10
	case ReasonArtifactLoadFailed:
		return 11
	case ReasonSizeMismatch:
		return 12
	case ReasonVerificationFailed:
		return 13
	case ReasonChainLoadFailed:
		return 14
	case ReasonInvalidConfig:
		return 2
	default:
		return 1
	}
}

func (r Reason) sentinel() error {
	switch r {
	case ReasonUnsupportedAlgorithm:
		return ErrUnsupportedAlgorithm
	case ReasonArtifactLoadFailed:
		return ErrArtifactLoadFailed
	case ReasonSizeMismatch:
		return ErrSizeMismatch
	case ReasonVerificationFailed:
		return ErrVerificationFailed
	case ReasonChainLoadFailed:
		return ErrChainLoadFailed
	case ReasonInvalidConfig:
		return ErrInvalidConfig
	default:
		return nil
	}
}

// Error is the halt error of an attempt.
//
// Messages never carry artifact contents.
type Error struct {
	Reason Reason
	// Artifact is set for ReasonArtifactLoadFailed and ReasonSizeMismatch.
	Artifact artifact.Role
	Err      error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Reason.sentinel()
	if msg == nil {
		msg = errors.New(e.Reason.String())
	}

	s := msg.Error()

	if e.Artifact != "" {
		s += " (" + string(e.Artifact) + ")"
	}

	if e.Err != nil {
		s += ": " + e.Err.Error()
	}

	return s
}

// Unwrap returns the reason sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)

	if sentinel := e.Reason.sentinel(); sentinel != nil {
		errs = append(errs, sentinel)
	}

	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// ReasonOf extracts the halt reason of err.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	var gateErr *Error

	if errors.As(err, &gateErr) {
		return gateErr.Reason
	}

	return ReasonVerificationFailed
}
