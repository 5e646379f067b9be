// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package bootgate

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/cloudflare/circl/sign/schemes"
	"github.com/siderolabs/go-procfs/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/chain"
	"github.com/siderolabs/bootgate/internal/pkg/config"
	"github.com/siderolabs/bootgate/internal/pkg/gate"
	"github.com/siderolabs/bootgate/internal/pkg/secureboot/provision"
)

func init() {
	firmwarePosture = func() (bool, bool) { return true, false }
}

type recordingHalter struct {
	codes []int
}

func (h *recordingHalter) Halt(code int) {
	h.codes = append(h.codes, code)
}

func TestDebugEnabled(t *testing.T) {
	t.Parallel()

	for cmdline, expected := range map[string]bool{
		"console=ttyS0":                    false,
		"console=ttyS0 bootgate.debug=1":   true,
		"bootgate.debug=on":                true,
		"bootgate.debug=0":                 false,
		"bootgate.debug=false quiet":       false,
		"quiet bootgate.debug=yes ro root": true,
	} {
		assert.Equal(t, expected, DebugEnabled(procfs.NewCmdline(cmdline)), cmdline)
	}

	assert.False(t, DebugEnabled(nil))
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := NewLogger(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()

	logger = NewLogger(&buf, true)
	logger.Debug("details")

	assert.Contains(t, buf.String(), "details")
}

func setup(t *testing.T) (string, provision.Artifacts) {
	t.Helper()

	scheme := schemes.ByName("ML-DSA-44")
	require.NotNil(t, scheme)

	publicKey, privateKey, err := provision.GenerateKeyPair(scheme)
	require.NoError(t, err)

	defer privateKey.Release() //nolint:errcheck

	digest, err := provision.Digest(bytes.NewReader([]byte("stage 2")), provision.SHA256)
	require.NoError(t, err)

	sig, err := provision.Sign(scheme, privateKey, digest)
	require.NoError(t, err)

	a := provision.Artifacts{Digest: digest, PublicKey: publicKey, Signature: sig}
	root := t.TempDir()

	require.NoError(t, provision.WriteArtifacts(root, artifact.DefaultNames(), a, false, zaptest.NewLogger(t)))

	return root, a
}

func configFor(root, algorithm string) []byte {
	return fmt.Appendf(nil, `version: v1alpha1
algorithm: %s
artifacts:
  source: file
  root: %s
  maxSize: 1048576
chain:
  method: kexec
  image: /boot/EFI/BOOT/verif_kernel.efi
halt:
  action: halt
`, algorithm, root)
}

func TestMainAttempt(t *testing.T) {
	t.Parallel()

	root, _ := setup(t)

	t.Run("verified", func(t *testing.T) {
		t.Parallel()

		var started []chain.Image

		halter := &recordingHalter{}

		result := Main(configFor(root, "ML-DSA-44"), zaptest.NewLogger(t), Collaborators{
			Loader: chain.LoaderFunc(func(image chain.Image) error {
				started = append(started, image)

				return nil
			}),
			Halter: halter,
		})

		assert.Equal(t, gate.StateChained, result.State)
		assert.Equal(t, []chain.Image{{Path: "/boot/EFI/BOOT/verif_kernel.efi"}}, started)
		assert.Empty(t, halter.codes)
	})

	t.Run("wrong algorithm size", func(t *testing.T) {
		t.Parallel()

		halter := &recordingHalter{}

		result := Main(configFor(root, "ML-DSA-87"), zaptest.NewLogger(t), Collaborators{
			Loader: chain.LoaderFunc(func(chain.Image) error { return nil }),
			Halter: halter,
		})

		assert.Equal(t, gate.ReasonSizeMismatch, result.Reason())
		assert.Equal(t, []int{12}, halter.codes)
	})

	t.Run("classical algorithm", func(t *testing.T) {
		t.Parallel()

		halter := &recordingHalter{}

		result := Main(configFor(root, "Ed25519"), zaptest.NewLogger(t), Collaborators{
			Loader: chain.LoaderFunc(func(chain.Image) error { return nil }),
			Halter: halter,
		})

		assert.Equal(t, gate.ReasonUnsupportedAlgorithm, result.Reason())
		assert.Equal(t, []int{10}, halter.codes)
	})

	t.Run("missing media", func(t *testing.T) {
		t.Parallel()

		halter := &recordingHalter{}

		result := Main(configFor(t.TempDir(), "ML-DSA-44"), zaptest.NewLogger(t), Collaborators{
			Loader: chain.LoaderFunc(func(chain.Image) error { return nil }),
			Halter: halter,
		})

		assert.Equal(t, gate.ReasonArtifactLoadFailed, result.Reason())
		assert.Equal(t, []int{11}, halter.codes)
	})

	t.Run("chain failure", func(t *testing.T) {
		t.Parallel()

		halter := &recordingHalter{}

		result := Main(configFor(root, "ML-DSA-44"), zaptest.NewLogger(t), Collaborators{
			Loader: chain.LoaderFunc(func(image chain.Image) error {
				return fmt.Errorf("%s: %w", image.Path, chain.ErrNotFound)
			}),
			Halter: halter,
		})

		assert.Equal(t, gate.ReasonChainLoadFailed, result.Reason())
		assert.Equal(t, []int{14}, halter.codes)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		halter := &recordingHalter{}

		result := Main([]byte("version: v0\n"), zaptest.NewLogger(t), Collaborators{Halter: halter})

		assert.True(t, result.Halted())
		assert.Equal(t, gate.ReasonInvalidConfig, result.Reason())
		assert.ErrorIs(t, result.Err, gate.ErrInvalidConfig)
		assert.NotErrorIs(t, result.Err, gate.ErrVerificationFailed)
		assert.Equal(t, []int{ExitInvalidConfig}, halter.codes)
		assert.Equal(t, gate.ReasonInvalidConfig.ExitCode(), ExitInvalidConfig)
	})

	t.Run("store setup failure", func(t *testing.T) {
		t.Parallel()

		cfg := config.Default()
		cfg.Artifacts.Source = config.SourceEFIVar
		cfg.Artifacts.VendorGUID = "not-a-guid"

		data, err := cfg.Bytes()
		require.NoError(t, err)

		halter := &recordingHalter{}

		result := Main(data, zaptest.NewLogger(t), Collaborators{Halter: halter})

		assert.Equal(t, gate.ReasonInvalidConfig, result.Reason())
		assert.Equal(t, []int{ExitInvalidConfig}, halter.codes)
	})
}

func TestFill(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		mutate func(*config.Config)
		reason gate.Reason
	}{
		{
			name: "store",
			mutate: func(cfg *config.Config) {
				cfg.Artifacts.Source = config.SourceEFIVar
				cfg.Artifacts.VendorGUID = "not-a-guid"
			},
			reason: gate.ReasonArtifactLoadFailed,
		},
		{
			name:   "loader",
			mutate: func(cfg *config.Config) { cfg.Chain.Method = "efi" },
			reason: gate.ReasonChainLoadFailed,
		},
		{
			name:   "halter",
			mutate: func(cfg *config.Config) { cfg.Halt.Action = "sleep" },
			reason: gate.ReasonInvalidConfig,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			cfg.Artifacts.Root = t.TempDir()
			tc.mutate(cfg)

			var c Collaborators

			err := c.fill(cfg, zaptest.NewLogger(t))
			require.Error(t, err)

			assert.Equal(t, tc.reason, gate.ReasonOf(err))

			if tc.reason == gate.ReasonInvalidConfig {
				assert.Nil(t, c.Halter)
			}
		})
	}

	cfg := config.Default()
	cfg.Artifacts.Root = t.TempDir()

	var c Collaborators

	require.NoError(t, c.fill(cfg, zaptest.NewLogger(t)))
	assert.NotNil(t, c.Primitive)
	assert.NotNil(t, c.Store)
	assert.NotNil(t, c.Loader)
	assert.NotNil(t, c.Halter)
}
