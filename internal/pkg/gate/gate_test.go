// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gate_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/chain"
	"github.com/siderolabs/bootgate/internal/pkg/gate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const stubAlgorithm = "stub-8"

var (
	stubDigest    = []byte("abcdefgh")
	stubPublicKey = []byte("pk-01234")
	stubSignature = []byte("sig-5678")
)

// stubPrimitive accepts stubSignature over stubDigest with stubPublicKey.
type stubPrimitive struct {
	calls  int
	result *bool
	panics bool
}

func (p *stubPrimitive) IsEnabled(id string) bool { return id == stubAlgorithm }

func (p *stubPrimitive) PublicKeySize(id string) int {
	if id != stubAlgorithm {
		return 0
	}

	return 8
}

func (p *stubPrimitive) SignatureSize(id string) int {
	if id != stubAlgorithm {
		return 0
	}

	return 8
}

func (p *stubPrimitive) Verify(_ string, message, publicKey, sig []byte) bool {
	p.calls++

	if p.panics {
		panic("primitive failure")
	}

	if p.result != nil {
		return *p.result
	}

	return bytes.Equal(message, stubDigest) && bytes.Equal(publicKey, stubPublicKey) && bytes.Equal(sig, stubSignature)
}

// trackingStore counts loads and releases of every buffer it hands out.
type trackingStore struct {
	store    artifact.Store
	loads    map[string]int
	releases map[string]int
	panics   bool
	// partial makes Load return the buffer together with an error.
	partial string
}

func newTrackingStore(blobs map[string][]byte) *trackingStore {
	return &trackingStore{
		store:    artifact.NewMemoryStore(blobs, 1024),
		loads:    map[string]int{},
		releases: map[string]int{},
	}
}

func (s *trackingStore) Load(name string) (*artifact.Buffer, error) {
	if s.panics {
		panic("media failure")
	}

	buf, err := s.store.Load(name)
	if err != nil {
		return nil, err
	}

	s.loads[name]++

	buf.OnRelease(func() { s.releases[name]++ })

	if name == s.partial {
		return buf, fmt.Errorf("%s: %w: short read", name, artifact.ErrIO)
	}

	return buf, nil
}

func (s *trackingStore) assertBalanced(t *testing.T) {
	t.Helper()

	assert.Equal(t, s.loads, s.releases, "every loaded buffer must be released exactly once")
}

type recordingLoader struct {
	images []chain.Image
	err    error
	panics bool
}

func (l *recordingLoader) LoadAndStart(image chain.Image) error {
	l.images = append(l.images, image)

	if l.panics {
		panic("loader failure")
	}

	return l.err
}

func defaultBlobs() map[string][]byte {
	return map[string][]byte{
		"hash.bin":      stubDigest,
		"publickey.bin": stubPublicKey,
		"sig.bin":       stubSignature,
	}
}

var nextImage = chain.Image{Path: "/boot/EFI/BOOT/verif_kernel.efi"}

type GateSuite struct {
	suite.Suite

	primitive *stubPrimitive
	store     *trackingStore
	loader    *recordingLoader
	algorithm string
}

func (suite *GateSuite) SetupTest() {
	suite.primitive = &stubPrimitive{}
	suite.store = newTrackingStore(defaultBlobs())
	suite.loader = &recordingLoader{}
	suite.algorithm = stubAlgorithm
}

func (suite *GateSuite) run() gate.Result {
	g := gate.New(suite.primitive, suite.store, suite.loader, gate.Options{
		Algorithm: suite.algorithm,
		Names:     artifact.DefaultNames(),
		Image:     nextImage,
		Logger:    zaptest.NewLogger(suite.T()),
	})

	result := g.Run()

	suite.store.assertBalanced(suite.T())
	suite.Assert().True(result.State.Terminal())
	suite.Assert().NotEmpty(result.AttemptID)

	if result.State == gate.StateHalted {
		suite.Assert().Error(result.Err)
	}

	return result
}

func (suite *GateSuite) TestVerified() {
	result := suite.run()

	suite.Require().Equal(gate.StateChained, result.State)
	suite.Assert().False(result.Halted())
	suite.Assert().NoError(result.Err)
	suite.Assert().Equal(gate.ReasonNone, result.Reason())
	suite.Assert().True(result.Decision.IsVerified())
	suite.Assert().Equal(1, suite.primitive.calls)
	suite.Assert().Equal([]chain.Image{nextImage}, suite.loader.images)
	suite.Assert().Equal([]gate.State{
		gate.StateStart,
		gate.StateArtifactsLoading,
		gate.StateArtifactsReady,
		gate.StateVerifying,
		gate.StateVerified,
		gate.StateChaining,
		gate.StateChained,
	}, result.Trace)
}

func (suite *GateSuite) TestReleasedBeforeChain() {
	var releasedAtChain map[string]int

	loader := chain.LoaderFunc(func(chain.Image) error {
		releasedAtChain = map[string]int{}

		for name, n := range suite.store.releases {
			releasedAtChain[name] = n
		}

		return nil
	})

	g := gate.New(suite.primitive, suite.store, loader, gate.Options{
		Algorithm: stubAlgorithm,
		Names:     artifact.DefaultNames(),
		Image:     nextImage,
		Logger:    zaptest.NewLogger(suite.T()),
	})

	suite.Require().Equal(gate.StateChained, g.Run().State)
	suite.Assert().Equal(map[string]int{"hash.bin": 1, "publickey.bin": 1, "sig.bin": 1}, releasedAtChain)
}

func (suite *GateSuite) TestSignatureSizeMismatch() {
	suite.store = newTrackingStore(map[string][]byte{
		"hash.bin":      stubDigest,
		"publickey.bin": stubPublicKey,
		"sig.bin":       stubSignature[:7],
	})

	result := suite.run()

	suite.Assert().True(result.Halted())
	suite.Assert().Equal(gate.ReasonSizeMismatch, result.Reason())
	suite.Assert().Equal(gate.VerdictRejected, result.Decision.Verdict())
	suite.Assert().Equal(artifact.RoleSignature, result.Decision.Artifact())
	suite.Assert().ErrorIs(result.Err, gate.ErrSizeMismatch)
	suite.Assert().Zero(suite.primitive.calls)
	suite.Assert().Empty(suite.loader.images)
	suite.Assert().Equal(gate.StateRejected, result.Trace[len(result.Trace)-2])
}

func (suite *GateSuite) TestPublicKeySizeMismatch() {
	suite.store = newTrackingStore(map[string][]byte{
		"hash.bin":      stubDigest,
		"publickey.bin": append(bytes.Clone(stubPublicKey), 0),
		"sig.bin":       stubSignature,
	})

	result := suite.run()

	suite.Assert().Equal(gate.ReasonSizeMismatch, result.Reason())
	suite.Assert().Equal(artifact.RolePublicKey, result.Decision.Artifact())
	suite.Assert().Zero(suite.primitive.calls)
	suite.Assert().Empty(suite.loader.images)
}

func (suite *GateSuite) TestPublicKeyMissing() {
	blobs := defaultBlobs()
	delete(blobs, "publickey.bin")

	suite.store = newTrackingStore(blobs)

	result := suite.run()

	suite.Assert().True(result.Halted())
	suite.Assert().Equal(gate.ReasonArtifactLoadFailed, result.Reason())
	suite.Assert().ErrorIs(result.Err, gate.ErrArtifactLoadFailed)
	suite.Assert().ErrorIs(result.Err, artifact.ErrNotFound)

	var gateErr *gate.Error

	suite.Require().ErrorAs(result.Err, &gateErr)
	suite.Assert().Equal(artifact.RolePublicKey, gateErr.Artifact)

	suite.Assert().Zero(suite.primitive.calls)
	suite.Assert().Empty(suite.loader.images)
	suite.Assert().Equal(1, suite.store.releases["hash.bin"])
	suite.Assert().Zero(suite.store.loads["sig.bin"])
	suite.Assert().Equal([]gate.State{gate.StateStart, gate.StateArtifactsLoading, gate.StateHalted}, result.Trace)
}

func (suite *GateSuite) TestVerificationFailed() {
	suite.primitive.result = new(bool)

	result := suite.run()

	suite.Assert().True(result.Halted())
	suite.Assert().Equal(gate.ReasonVerificationFailed, result.Reason())
	suite.Assert().Equal(gate.VerdictRejected, result.Decision.Verdict())
	suite.Assert().Equal(1, suite.primitive.calls)
	suite.Assert().Empty(suite.loader.images)
	suite.Assert().Equal([]gate.State{
		gate.StateStart,
		gate.StateArtifactsLoading,
		gate.StateArtifactsReady,
		gate.StateVerifying,
		gate.StateRejected,
		gate.StateHalted,
	}, result.Trace)
}

func (suite *GateSuite) TestChainLoadFailed() {
	suite.loader.err = fmt.Errorf("%s: %w", nextImage.Path, chain.ErrNotFound)

	result := suite.run()

	suite.Assert().True(result.Halted())
	suite.Assert().True(result.Decision.IsVerified())
	suite.Assert().Equal(gate.ReasonChainLoadFailed, result.Reason())
	suite.Assert().ErrorIs(result.Err, gate.ErrChainLoadFailed)
	suite.Assert().ErrorIs(result.Err, chain.ErrNotFound)
	suite.Assert().Len(suite.loader.images, 1)
}

func (suite *GateSuite) TestUnsupportedAlgorithm() {
	suite.algorithm = "RSA-2048"

	result := suite.run()

	suite.Assert().Equal(gate.ReasonUnsupportedAlgorithm, result.Reason())
	suite.Assert().Equal(gate.VerdictNone, result.Decision.Verdict())
	suite.Assert().Empty(suite.store.loads)
	suite.Assert().Zero(suite.primitive.calls)
	suite.Assert().Empty(suite.loader.images)
	suite.Assert().Equal([]gate.State{gate.StateStart, gate.StateHalted}, result.Trace)
}

func (suite *GateSuite) TestPanickingPrimitive() {
	suite.primitive.panics = true

	result := suite.run()

	suite.Assert().Equal(gate.ReasonVerificationFailed, result.Reason())
	suite.Assert().Empty(suite.loader.images)
}

func (suite *GateSuite) TestPanickingStore() {
	suite.store.panics = true

	result := suite.run()

	suite.Assert().Equal(gate.ReasonArtifactLoadFailed, result.Reason())
	suite.Assert().ErrorIs(result.Err, artifact.ErrIO)
	suite.Assert().Zero(suite.primitive.calls)
}

func (suite *GateSuite) TestStoreErrorWithBuffer() {
	suite.store.partial = artifact.DefaultNames().For(artifact.RolePublicKey)

	result := suite.run()

	suite.Assert().Equal(gate.StateHalted, result.State)
	suite.Assert().Equal(gate.ReasonArtifactLoadFailed, result.Reason())
	suite.Assert().ErrorIs(result.Err, artifact.ErrIO)
	suite.Assert().Equal(1, suite.store.releases[suite.store.partial])
	suite.Assert().Zero(suite.primitive.calls)
	suite.Assert().Empty(suite.loader.images)
}

func (suite *GateSuite) TestPanickingLoader() {
	suite.loader.panics = true

	result := suite.run()

	suite.Assert().Equal(gate.ReasonChainLoadFailed, result.Reason())
	suite.Assert().ErrorIs(result.Err, chain.ErrStartFailed)
}

func (suite *GateSuite) TestRunTwice() {
	g := gate.New(suite.primitive, suite.store, suite.loader, gate.Options{
		Algorithm: stubAlgorithm,
		Names:     artifact.DefaultNames(),
		Image:     nextImage,
	})

	g.Run()

	suite.Assert().Panics(func() { g.Run() })
	suite.Assert().Len(suite.loader.images, 1)
}

func TestGateSuite(t *testing.T) {
	t.Parallel()

	suite.Run(t, new(GateSuite))
}

// TestFailClosed walks every media failure and requires a halt without chain loading.
func TestFailClosed(t *testing.T) {
	t.Parallel()

	for _, role := range artifact.Roles() {
		name := artifact.DefaultNames().For(role)

		for _, tc := range []struct {
			name   string
			mutate func(map[string][]byte)
			reason gate.Reason
		}{
			{
				name:   "missing",
				mutate: func(b map[string][]byte) { delete(b, name) },
				reason: gate.ReasonArtifactLoadFailed,
			},
			{
				name:   "empty",
				mutate: func(b map[string][]byte) { b[name] = nil },
				reason: gate.ReasonArtifactLoadFailed,
			},
			{
				name:   "oversized",
				mutate: func(b map[string][]byte) { b[name] = make([]byte, 2048) },
				reason: gate.ReasonArtifactLoadFailed,
			},
			{
				name:   "truncated",
				mutate: func(b map[string][]byte) { b[name] = b[name][:4] },
				reason: truncatedReason(role),
			},
			{
				name:   "corrupted",
				mutate: func(b map[string][]byte) { b[name] = bytes.Repeat([]byte{0xff}, len(b[name])) },
				reason: gate.ReasonVerificationFailed,
			},
		} {
			t.Run(string(role)+"/"+tc.name, func(t *testing.T) {
				t.Parallel()

				blobs := defaultBlobs()
				tc.mutate(blobs)

				primitive := &stubPrimitive{}
				store := newTrackingStore(blobs)
				loader := &recordingLoader{}

				result := gate.New(primitive, store, loader, gate.Options{
					Algorithm: stubAlgorithm,
					Names:     artifact.DefaultNames(),
					Image:     nextImage,
					Logger:    zaptest.NewLogger(t),
				}).Run()

				assert.Equal(t, gate.StateHalted, result.State)
				assert.Equal(t, tc.reason, result.Reason())
				assert.Empty(t, loader.images)
				assert.LessOrEqual(t, primitive.calls, 1)

				if tc.reason != gate.ReasonVerificationFailed {
					assert.Zero(t, primitive.calls)
				}

				store.assertBalanced(t)
			})
		}
	}
}

// truncatedReason is the halt reason for an artifact shorter than expected.
// The digest has no fixed size, so only the signature check catches it.
func truncatedReason(role artifact.Role) gate.Reason {
	if role == artifact.RoleDigest {
		return gate.ReasonVerificationFailed
	}

	return gate.ReasonSizeMismatch
}

func TestResultReason(t *testing.T) {
	t.Parallel()

	r := gate.Result{State: gate.StateHalted, Err: errors.New("unclassified")}
	require.True(t, r.Halted())
	assert.Equal(t, gate.ReasonVerificationFailed, r.Reason())

	r = gate.Result{State: gate.StateHalted}
	assert.Equal(t, gate.ReasonVerificationFailed, r.Reason())

	r = gate.Result{State: gate.StateChained}
	assert.Equal(t, gate.ReasonNone, r.Reason())
}
