// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package artifact

import (
	"errors"
	"fmt"

	"github.com/ecks/uefi/efi/efiguid"
	"github.com/ecks/uefi/efi/efivario"
	"go.uber.org/zap"
)

// EFIVarStore loads artifacts from UEFI variables.
//
// Each artifact is a variable named after it under the vendor GUID, the
// variable payload is the raw blob.
type EFIVarStore struct {
	read    func(name string, guid efiguid.GUID) ([]byte, error)
	guid    efiguid.GUID
	maxSize int64
	logger  *zap.Logger
}

// NewEFIVarStore creates a store backed by the EFI variable context c.
func NewEFIVarStore(c efivario.Context, vendorGUID string, maxSize int64, logger *zap.Logger) (*EFIVarStore, error) {
	return newEFIVarStore(func(name string, guid efiguid.GUID) ([]byte, error) {
		_, data, err := efivario.ReadAll(c, name, guid)

		return data, err
	}, vendorGUID, maxSize, logger)
}

func newEFIVarStore(read func(string, efiguid.GUID) ([]byte, error), vendorGUID string, maxSize int64, logger *zap.Logger) (*EFIVarStore, error) {
	guid, err := efiguid.FromString(vendorGUID)
	if err != nil {
		return nil, fmt.Errorf("invalid vendor GUID %q: %w", vendorGUID, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &EFIVarStore{
		read:    read,
		guid:    guid,
		maxSize: maxSize,
		logger:  logger,
	}, nil
}

// Load implements Store.
func (s *EFIVarStore) Load(name string) (*Buffer, error) {
	data, err := s.read(name, s.guid)
	if err != nil {
		if errors.Is(err, efivario.ErrNotFound) {
			return nil, fmt.Errorf("efivar %s: %w", name, ErrNotFound)
		}

		return nil, fmt.Errorf("efivar %s: %w: %w", name, ErrIO, err)
	}

	if err = checkSize(name, int64(len(data)), s.maxSize); err != nil {
		return nil, err
	}

	s.logger.Debug("artifact loaded from efivar", zap.String("name", name), zap.Int("size", len(data)))

	return NewBuffer(name, data), nil
}
