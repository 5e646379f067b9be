// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package bootgate implements the boot gate process.
package bootgate

import (
	"fmt"

	"github.com/foxboron/go-uefi/efi"
	"go.uber.org/zap"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/chain"
	"github.com/siderolabs/bootgate/internal/pkg/config"
	"github.com/siderolabs/bootgate/internal/pkg/gate"
	"github.com/siderolabs/bootgate/internal/pkg/signature"
)

// ExitInvalidConfig is the exit code used when the embedded configuration is unusable,
// it matches gate.ReasonInvalidConfig.
const ExitInvalidConfig = 2

// firmwarePosture is informational, it never affects the decision.
var firmwarePosture = func() (secureBoot, setupMode bool) {
	return efi.GetSecureBoot(), efi.GetSetupMode()
}

// Halter stops the boot.
type Halter interface {
	Halt(code int)
}

// Collaborators overrides the components built from the configuration.
type Collaborators struct {
	Primitive signature.Primitive
	Store     artifact.Store
	Loader    chain.Loader
	Halter    Halter
}

// Main runs a single gate attempt with the configuration.
//
// On success control has moved to the next stage, otherwise the halter is invoked
// with the exit code of the halt reason.
func Main(configData []byte, logger *zap.Logger, c Collaborators) gate.Result {
	cfg, err := config.Parse(configData)
	if err != nil {
		logger.Error("invalid gate configuration", zap.Error(err))

		result := gate.Result{
			State: gate.StateHalted,
			Err:   &gate.Error{Reason: gate.ReasonInvalidConfig, Err: err},
			Trace: []gate.State{gate.StateStart, gate.StateHalted},
		}

		haltWith(c.Halter, ExitInvalidConfig, logger, cfg)

		return result
	}

	secureBoot, setupMode := firmwarePosture()

	logger.Info("firmware posture", zap.Bool("secure_boot", secureBoot), zap.Bool("setup_mode", setupMode))

	if err = c.fill(cfg, logger); err != nil {
		logger.Error("failed to set up gate", zap.Error(err))

		result := gate.Result{
			State: gate.StateHalted,
			Err:   err,
			Trace: []gate.State{gate.StateStart, gate.StateHalted},
		}

		haltWith(c.Halter, result.Reason().ExitCode(), logger, cfg)

		return result
	}

	result := gate.New(c.Primitive, c.Store, c.Loader, gate.Options{
		Algorithm: cfg.Algorithm,
		Names:     cfg.Artifacts.Names,
		Image:     cfg.Image(),
		Logger:    logger,
	}).Run()

	if result.Halted() {
		c.Halter.Halt(result.Reason().ExitCode())
	}

	return result
}

// fill builds the missing collaborators, errors are tagged with the reason of the failing one.
func (c *Collaborators) fill(cfg *config.Config, logger *zap.Logger) error {
	var err error

	if c.Primitive == nil {
		c.Primitive = signature.Circl{}
	}

	if c.Store == nil {
		if c.Store, err = cfg.NewStore(logger); err != nil {
			return &gate.Error{Reason: gate.ReasonArtifactLoadFailed, Err: fmt.Errorf("failed to open artifact store: %w", err)}
		}
	}

	if c.Loader == nil {
		if c.Loader, err = cfg.NewLoader(logger); err != nil {
			return &gate.Error{Reason: gate.ReasonChainLoadFailed, Err: fmt.Errorf("failed to set up chain loader: %w", err)}
		}
	}

	if c.Halter == nil {
		if c.Halter, err = cfg.NewHalter(logger); err != nil {
			c.Halter = nil

			return &gate.Error{Reason: gate.ReasonInvalidConfig, Err: fmt.Errorf("failed to set up halter: %w", err)}
		}
	}

	return nil
}

// haltWith halts when the configuration couldn't provide a halter.
func haltWith(h Halter, code int, logger *zap.Logger, cfg *config.Config) {
	if h == nil {
		if cfg == nil {
			cfg = config.Default()
		}

		var err error

		if h, err = cfg.NewHalter(logger); err != nil {
			h, _ = config.Default().NewHalter(logger) //nolint:errcheck
		}
	}

	h.Halt(code)
}
