// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chain

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Exec replaces the current process with the next stage executable.
//
// Image.Cmdline is split on whitespace into the argument list, Image.Initrd is ignored.
type Exec struct {
	logger *zap.Logger

	exec func(argv0 string, argv []string, envv []string) error
}

// NewExec creates an exec loader.
func NewExec(logger *zap.Logger) *Exec {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Exec{
		logger: logger,
		exec:   unix.Exec,
	}
}

// LoadAndStart implements Loader.
func (e *Exec) LoadAndStart(image Image) error {
	st, err := os.Stat(image.Path)
	if err != nil {
		return openError(image.Path, err)
	}

	if !st.Mode().IsRegular() || st.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s: not an executable file: %w", image.Path, ErrLoadFailed)
	}

	argv := append([]string{image.Path}, strings.Fields(image.Cmdline)...)

	e.logger.Info("executing next stage", zap.Strings("argv", argv))

	if err = e.exec(image.Path, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w: %w", image.Path, ErrStartFailed, err)
	}

	return nil
}
