// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package provision

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ecks/uefi/efi/efiguid"
	"github.com/ecks/uefi/efi/efivario"
	"go.uber.org/zap"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
)

// CheckedWrite writes data to path, refusing to overwrite an existing file unless force is set.
func CheckedWrite(path string, data []byte, perm fs.FileMode, force bool, logger *zap.Logger) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file %q already exists, use --force to overwrite", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if dirname := filepath.Dir(path); dirname != "." {
		if err := os.MkdirAll(dirname, 0o700); err != nil {
			return err
		}
	}

	if logger != nil {
		logger.Info("writing file", zap.String("path", path), zap.Int("size", len(data)))
	}

	return os.WriteFile(path, data, perm)
}

// WriteArtifacts writes the artifacts into dir under names.
func WriteArtifacts(dir string, names artifact.Names, a Artifacts, force bool, logger *zap.Logger) error {
	for _, role := range artifact.Roles() {
		if len(a.For(role)) == 0 {
			return fmt.Errorf("%s artifact is empty", role)
		}
	}

	for _, role := range artifact.Roles() {
		if err := CheckedWrite(filepath.Join(dir, names.For(role)), a.For(role), 0o644, force, logger); err != nil {
			return err
		}
	}

	return nil
}

// VariableSetter writes UEFI variables, efivario.Context satisfies it.
type VariableSetter interface {
	Set(name string, guid efiguid.GUID, attributes efivario.Attributes, value []byte) error
}

// WriteEFIVars stores the artifacts as non-volatile UEFI variables under vendorGUID.
func WriteEFIVars(c VariableSetter, vendorGUID string, names artifact.Names, a Artifacts, logger *zap.Logger) error {
	guid, err := efiguid.FromString(vendorGUID)
	if err != nil {
		return fmt.Errorf("invalid vendor GUID %q: %w", vendorGUID, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	for _, role := range artifact.Roles() {
		name := names.For(role)

		logger.Info("writing efivar", zap.String("name", name), zap.String("guid", vendorGUID), zap.Int("size", len(a.For(role))))

		if err = c.Set(name, guid, efivario.BootServiceAccess|efivario.RuntimeAccess|efivario.NonVolatile, a.For(role)); err != nil {
			return fmt.Errorf("failed to write efivar %s: %w", name, err)
		}
	}

	return nil
}
