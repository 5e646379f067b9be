// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// FileStore loads artifacts from a directory of the boot volume.
//
// Names are resolved inside the directory only, a name can't escape it
// through "..", absolute paths or symlinks.
type FileStore struct {
	root    string
	maxSize int64
	logger  *zap.Logger
}

// NewFileStore creates a FileStore rooted at dir.
//
// Artifacts larger than maxSize are rejected, zero maxSize disables the check.
func NewFileStore(dir string, maxSize int64, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileStore{
		root:    dir,
		maxSize: maxSize,
		logger:  logger,
	}
}

// Load implements Store.
func (s *FileStore) Load(name string) (*Buffer, error) {
	root, err := os.OpenRoot(s.root)
	if err != nil {
		return nil, classify(s.root, err)
	}

	defer root.Close() //nolint:errcheck

	f, err := root.Open(name)
	if err != nil {
		return nil, classify(name, err)
	}

	defer f.Close() //nolint:errcheck

	st, err := f.Stat()
	if err != nil {
		return nil, classify(name, err)
	}

	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file: %w", name, ErrIO)
	}

	if err = checkSize(name, st.Size(), s.maxSize); err != nil {
		return nil, err
	}

	data := make([]byte, st.Size())

	if _, err = io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", name, ErrIO, err)
	}

	s.logger.Debug("artifact loaded", zap.String("name", name), zap.Int("size", len(data)))

	return NewBuffer(name, data), nil
}

func classify(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	return fmt.Errorf("%s: %w: %w", name, ErrIO, err)
}
