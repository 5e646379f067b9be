// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chain

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Kexec starts the next stage kernel with kexec_file_load(2).
//
// The kernel verifies the image against its own keyring when
// CONFIG_KEXEC_SIG is enforced, in addition to the gate decision.
type Kexec struct {
	logger *zap.Logger

	kexecFileLoad func(kernelFd, initrdFd int, cmdline string, flags int) error
	reboot        func(cmd int) error
	sync          func()
}

// NewKexec creates a kexec loader.
func NewKexec(logger *zap.Logger) *Kexec {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Kexec{
		logger:        logger,
		kexecFileLoad: unix.KexecFileLoad,
		reboot:        unix.Reboot,
		sync:          unix.Sync,
	}
}

// LoadAndStart implements Loader.
func (k *Kexec) LoadAndStart(image Image) error {
	kernel, err := os.Open(image.Path)
	if err != nil {
		return openError(image.Path, err)
	}

	defer kernel.Close() //nolint:errcheck

	initrdFd := -1
	flags := 0

	if image.Initrd != "" {
		initrd, err := os.Open(image.Initrd)
		if err != nil {
			return openError(image.Initrd, err)
		}

		defer initrd.Close() //nolint:errcheck

		initrdFd = int(initrd.Fd())
	} else {
		flags |= unix.KEXEC_FILE_NO_INITRAMFS
	}

	if err = k.kexecFileLoad(int(kernel.Fd()), initrdFd, image.Cmdline, flags); err != nil {
		return fmt.Errorf("kexec_file_load %s: %w: %w", image.Path, ErrLoadFailed, err)
	}

	k.logger.Info("prepared kexec environment", zap.String("kernel", image.Path), zap.String("initrd", image.Initrd), zap.String("cmdline", image.Cmdline))

	k.sync()

	if err = k.reboot(unix.LINUX_REBOOT_CMD_KEXEC); err != nil {
		return fmt.Errorf("kexec reboot: %w: %w", ErrStartFailed, err)
	}

	return nil
}
