// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gate

import (
	"github.com/siderolabs/bootgate/internal/pkg/artifact"
)

// Verdict is the binary outcome of a trust decision.
type Verdict int

// Verdicts.
//
// The zero value means no decision was made, which is never treated as trusted.
const (
	VerdictNone Verdict = iota
	VerdictVerified
	VerdictRejected
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case VerdictVerified:
		return "verified"
	case VerdictRejected:
		return "rejected"
	default:
		return "none"
	}
}

// Decision is the immutable outcome of one verification attempt.
type Decision struct {
	verdict  Verdict
	reason   Reason
	artifact artifact.Role
}

// Verified returns a Verified decision.
func Verified() Decision {
	return Decision{verdict: VerdictVerified}
}

// Rejected returns a Rejected decision.
//
// role names the offending artifact, if any.
func Rejected(reason Reason, role artifact.Role) Decision {
	return Decision{
		verdict:  VerdictRejected,
		reason:   reason,
		artifact: role,
	}
}

// Verdict returns the verdict.
func (d Decision) Verdict() Verdict {
	return d.verdict
}

// IsVerified reports whether the decision allows chain loading.
func (d Decision) IsVerified() bool {
	return d.verdict == VerdictVerified
}

// Reason returns the rejection reason, ReasonNone unless Rejected.
func (d Decision) Reason() Reason {
	return d.reason
}

// Artifact returns the artifact the rejection is attributed to.
func (d Decision) Artifact() artifact.Role {
	return d.artifact
}

// Err returns the halt error for a decision which is not Verified.
func (d Decision) Err() error {
	switch d.verdict {
	case VerdictVerified:
		return nil
	case VerdictRejected:
		return &Error{Reason: d.reason, Artifact: d.artifact}
	default:
		return &Error{Reason: ReasonVerificationFailed}
	}
}

// String implements fmt.Stringer.
func (d Decision) String() string {
	if d.verdict != VerdictRejected {
		return d.verdict.String()
	}

	s := d.verdict.String() + "(" + d.reason.String()

	if d.artifact != "" {
		s += ", " + string(d.artifact)
	}

	return s + ")"
}
