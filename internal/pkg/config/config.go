// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config implements the boot gate configuration document.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecks/uefi/efi/efiguid"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/chain"
	"github.com/siderolabs/bootgate/internal/pkg/gate/halt"
	"github.com/siderolabs/bootgate/internal/pkg/secureboot"
)

// Version is the only supported document version.
const Version = "v1alpha1"

// Source is the kind of artifact store.
type Source string

// Artifact sources.
const (
	SourceFile   Source = "file"
	SourceEFIVar Source = "efivar"
)

// Config is the boot gate configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Algorithm string          `yaml:"algorithm"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Chain     ChainConfig     `yaml:"chain"`
	Halt      HaltConfig      `yaml:"halt"`
}

// ArtifactsConfig describes where the artifacts are loaded from.
type ArtifactsConfig struct {
	Source     Source         `yaml:"source"`
	Root       string         `yaml:"root,omitempty"`
	VendorGUID string         `yaml:"vendorGUID,omitempty"`
	MaxSize    int64          `yaml:"maxSize"`
	Names      artifact.Names `yaml:"names"`
}

// ChainConfig describes the next boot stage.
type ChainConfig struct {
	Method  string `yaml:"method"`
	Image   string `yaml:"image"`
	Initrd  string `yaml:"initrd,omitempty"`
	Cmdline string `yaml:"cmdline,omitempty"`
}

// HaltConfig describes the terminal action.
type HaltConfig struct {
	Action string `yaml:"action"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version:   Version,
		Algorithm: secureboot.DefaultAlgorithm,
		Artifacts: ArtifactsConfig{
			Source:     SourceFile,
			Root:       secureboot.DefaultArtifactsRoot,
			VendorGUID: secureboot.VendorGUIDString,
			MaxSize:    secureboot.DefaultMaxArtifactSize,
			Names:      artifact.DefaultNames(),
		},
		Chain: ChainConfig{
			Method: string(chain.MethodKexec),
			Image:  secureboot.DefaultNextImage,
		},
		Halt: HaltConfig{
			Action: string(halt.ActionHalt),
		},
	}
}

// Parse decodes and validates a configuration document.
//
// Fields missing from the document keep their default values, unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads the configuration from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Bytes encodes the configuration.
func (c *Config) Bytes() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(c); err != nil {
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Version != Version {
		result = multierror.Append(result, fmt.Errorf("unsupported config version %q", c.Version))
	}

	if strings.TrimSpace(c.Algorithm) == "" {
		result = multierror.Append(result, errors.New("algorithm is required"))
	}

	switch c.Artifacts.Source {
	case SourceFile:
		if !filepath.IsAbs(c.Artifacts.Root) {
			result = multierror.Append(result, fmt.Errorf("artifacts root %q must be an absolute path", c.Artifacts.Root))
		}
	case SourceEFIVar:
		if _, err := efiguid.FromString(c.Artifacts.VendorGUID); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid artifacts vendor GUID %q: %w", c.Artifacts.VendorGUID, err))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown artifacts source %q", c.Artifacts.Source))
	}

	if c.Artifacts.MaxSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("artifacts maxSize must be positive, got %d", c.Artifacts.MaxSize))
	}

	seen := map[string]artifact.Role{}

	for _, role := range artifact.Roles() {
		name := c.Artifacts.Names.For(role)

		switch {
		case name == "":
			result = multierror.Append(result, fmt.Errorf("artifact name for %s is required", role))
		case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
			result = multierror.Append(result, fmt.Errorf("artifact name %q for %s must be a plain name", name, role))
		default:
			if other, ok := seen[name]; ok {
				result = multierror.Append(result, fmt.Errorf("artifact name %q is used for both %s and %s", name, other, role))
			}

			seen[name] = role
		}
	}

	if _, err := chain.ParseMethod(c.Chain.Method); err != nil {
		result = multierror.Append(result, err)
	}

	if !filepath.IsAbs(c.Chain.Image) {
		result = multierror.Append(result, fmt.Errorf("chain image %q must be an absolute path", c.Chain.Image))
	}

	if c.Chain.Initrd != "" && !filepath.IsAbs(c.Chain.Initrd) {
		result = multierror.Append(result, fmt.Errorf("chain initrd %q must be an absolute path", c.Chain.Initrd))
	}

	if _, err := halt.ParseAction(c.Halt.Action); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// Image returns the next boot stage.
func (c *Config) Image() chain.Image {
	return chain.Image{
		Path:    c.Chain.Image,
		Initrd:  c.Chain.Initrd,
		Cmdline: c.Chain.Cmdline,
	}
}
