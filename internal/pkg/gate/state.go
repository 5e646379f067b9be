// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gate

import (
	"fmt"
	"slices"
)

// State is a state of the trust decision state machine.
type State int

// States, in the order an accepted attempt walks through them.
const (
	StateStart State = iota
	StateArtifactsLoading
	StateArtifactsReady
	StateVerifying
	StateVerified
	StateChaining
	StateChained
	StateRejected
	StateHalted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateArtifactsLoading:
		return "ArtifactsLoading"
	case StateArtifactsReady:
		return "ArtifactsReady"
	case StateVerifying:
		return "Verifying"
	case StateVerified:
		return "Verified"
	case StateChaining:
		return "Chaining"
	case StateChained:
		return "Chained"
	case StateRejected:
		return "Rejected"
	case StateHalted:
		return "Halted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	return s == StateChained || s == StateHalted
}

// transitions lists the allowed state changes.
var transitions = map[State][]State{
	StateStart:            {StateArtifactsLoading, StateHalted},
	StateArtifactsLoading: {StateArtifactsReady, StateHalted},
	StateArtifactsReady:   {StateVerifying},
	StateVerifying:        {StateVerified, StateRejected},
	StateVerified:         {StateChaining},
	StateChaining:         {StateChained, StateHalted},
	StateRejected:         {StateHalted},
}

func canTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
