// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gate implements the boot trust gate.
//
// The gate loads the measured digest, the public key and the signature from
// the artifact store, verifies the signature and either transfers control to
// the next boot stage or halts. Every error path ends in Halted.
package gate

import (
	"fmt"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/chain"
	"github.com/siderolabs/bootgate/internal/pkg/lifecycle"
	"github.com/siderolabs/bootgate/internal/pkg/signature"
)

// Options configures a Gate.
type Options struct {
	// Algorithm is the signature algorithm identifier.
	Algorithm string
	// Names maps artifact roles to store names.
	Names artifact.Names
	// Image is the next boot stage.
	Image chain.Image
	// Logger receives the progress of the attempt, defaults to a no-op logger.
	Logger *zap.Logger
}

// Result is the outcome of one attempt.
type Result struct {
	// AttemptID correlates the log records of the attempt.
	AttemptID string
	// State is the terminal state, Chained or Halted.
	State State
	// Decision is the trust decision, VerdictNone if verification never ran.
	Decision Decision
	// Err is the halt error, nil when Chained.
	Err error
	// Trace lists the visited states in order.
	Trace []State
}

// Halted reports whether the attempt halted.
func (r Result) Halted() bool {
	return r.State != StateChained
}

// Reason returns the halt reason, ReasonNone when Chained.
func (r Result) Reason() Reason {
	if !r.Halted() {
		return ReasonNone
	}

	reason := ReasonOf(r.Err)
	if reason == ReasonNone {
		return ReasonVerificationFailed
	}

	return reason
}

// Gate runs a single verification attempt.
type Gate struct {
	primitive signature.Primitive
	store     artifact.Store
	loader    chain.Loader
	opts      Options
	ran       bool
}

// New creates a Gate.
func New(primitive signature.Primitive, store artifact.Store, loader chain.Loader, opts Options) *Gate {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Gate{
		primitive: primitive,
		store:     store,
		loader:    loader,
		opts:      opts,
	}
}

// Run performs the attempt.
//
// Artifacts are released before the next stage is started. A Gate can run once,
// a second call panics.
func (g *Gate) Run() Result {
	if g.ran {
		panic("gate: Run called twice")
	}

	g.ran = true

	a := &attempt{
		gate: g,
		result: Result{
			AttemptID: xid.New().String(),
			State:     StateStart,
			Trace:     []State{StateStart},
		},
	}

	a.logger = g.opts.Logger.With(zap.String("attempt", a.result.AttemptID))

	a.run()

	return a.result
}

type attempt struct {
	gate   *Gate
	logger *zap.Logger
	scope  lifecycle.Scope
	result Result
}

func (a *attempt) run() {
	defer a.release()

	defer func() {
		if p := recover(); p != nil {
			a.halt(&Error{Reason: ReasonVerificationFailed, Err: fmt.Errorf("internal error: %v", p)})
		}
	}()

	a.logger.Info("starting verification attempt",
		zap.String("algorithm", a.gate.opts.Algorithm),
		zap.Stringer("image", a.gate.opts.Image),
	)

	verifier, err := NewVerifier(a.gate.primitive, a.gate.opts.Algorithm)
	if err != nil {
		a.halt(err)

		return
	}

	a.logger.Debug("verifier ready", zap.Stringer("algorithm", verifier.Descriptor()))

	a.enter(StateArtifactsLoading)

	buffers := make(map[artifact.Role]*artifact.Buffer, len(artifact.Roles()))

	for _, role := range artifact.Roles() {
		buf, err := a.load(role)
		if err != nil {
			a.result.Decision = Rejected(ReasonArtifactLoadFailed, role)
			a.halt(&Error{Reason: ReasonArtifactLoadFailed, Artifact: role, Err: err})

			return
		}

		buffers[role] = buf
	}

	a.enter(StateArtifactsReady)
	a.enter(StateVerifying)

	decision := verifier.Check(
		buffers[artifact.RoleDigest].Bytes(),
		buffers[artifact.RolePublicKey].Bytes(),
		buffers[artifact.RoleSignature].Bytes(),
	)

	a.result.Decision = decision

	a.logger.Info("trust decision", zap.Stringer("decision", decision))

	// artifacts are not needed past the decision, and control may never return from the loader
	a.release()

	if !decision.IsVerified() {
		a.enter(StateRejected)
		a.halt(decision.Err())

		return
	}

	a.enter(StateVerified)
	a.enter(StateChaining)

	if err = a.chain(); err != nil {
		a.halt(&Error{Reason: ReasonChainLoadFailed, Err: err})

		return
	}

	a.enter(StateChained)
}

func (a *attempt) load(role artifact.Role) (buf *artifact.Buffer, err error) {
	name := a.gate.opts.Names.For(role)

	defer func() {
		if p := recover(); p != nil {
			buf, err = nil, fmt.Errorf("%s: %w: %v", name, artifact.ErrIO, p)
		}
	}()

	buf, err = a.gate.store.Load(name)
	if err != nil {
		if buf != nil {
			buf.Release() //nolint:errcheck
		}

		return nil, err
	}

	if buf == nil || buf.Len() == 0 {
		if buf != nil {
			buf.Release() //nolint:errcheck
		}

		return nil, fmt.Errorf("%s: %w", name, artifact.ErrEmpty)
	}

	size := buf.Len()

	buf.OnRelease(func() {
		a.logger.Debug("artifact released", zap.String("role", string(role)), zap.String("name", name))
	})

	if err = a.scope.Acquire(buf); err != nil {
		return nil, err
	}

	a.logger.Debug("artifact loaded", zap.String("role", string(role)), zap.String("name", name), zap.Int("size", size))

	return buf, nil
}

func (a *attempt) chain() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", chain.ErrStartFailed, p)
		}
	}()

	a.logger.Info("starting next stage", zap.Stringer("image", a.gate.opts.Image))

	return a.gate.loader.LoadAndStart(a.gate.opts.Image)
}

func (a *attempt) release() {
	if err := a.scope.Close(); err != nil {
		a.logger.Error("failed to release artifacts", zap.Error(err))
	}
}

func (a *attempt) enter(s State) {
	if !canTransition(a.result.State, s) {
		panic(fmt.Sprintf("gate: invalid transition %s -> %s", a.result.State, s))
	}

	a.logger.Debug("state transition", zap.Stringer("from", a.result.State), zap.Stringer("to", s))

	a.result.State = s
	a.result.Trace = append(a.result.Trace, s)
}

// halt is the only way an attempt ends without chaining.
func (a *attempt) halt(err error) {
	if err == nil {
		err = &Error{Reason: ReasonVerificationFailed}
	}

	if a.result.State == StateHalted {
		return
	}

	a.result.Err = err
	a.result.State = StateHalted
	a.result.Trace = append(a.result.Trace, StateHalted)

	reason := ReasonOf(err)

	a.logger.Error("boot halted",
		zap.Stringer("reason", reason),
		zap.String("category", reason.Category()),
		zap.Error(err),
	)
}
