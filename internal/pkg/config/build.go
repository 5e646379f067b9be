// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"

	"github.com/ecks/uefi/efi/efivario"
	"go.uber.org/zap"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/chain"
	"github.com/siderolabs/bootgate/internal/pkg/gate/halt"
)

// NewStore creates the artifact store described by the configuration.
func (c *Config) NewStore(logger *zap.Logger) (artifact.Store, error) {
	switch c.Artifacts.Source {
	case SourceFile:
		return artifact.NewFileStore(c.Artifacts.Root, c.Artifacts.MaxSize, logger), nil
	case SourceEFIVar:
		store, err := artifact.NewEFIVarStore(efivario.NewDefaultContext(), c.Artifacts.VendorGUID, c.Artifacts.MaxSize, logger)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, fmt.Errorf("unknown artifacts source %q", c.Artifacts.Source)
	}
}

// NewLoader creates the chain loader described by the configuration.
func (c *Config) NewLoader(logger *zap.Logger) (chain.Loader, error) {
	method, err := chain.ParseMethod(c.Chain.Method)
	if err != nil {
		return nil, err
	}

	switch method {
	case chain.MethodExec:
		return chain.NewExec(logger), nil
	default:
		return chain.NewKexec(logger), nil
	}
}

// NewHalter creates the halter described by the configuration.
func (c *Config) NewHalter(logger *zap.Logger) (*halt.Halter, error) {
	action, err := halt.ParseAction(c.Halt.Action)
	if err != nil {
		return nil, err
	}

	return halt.New(action, logger), nil
}
