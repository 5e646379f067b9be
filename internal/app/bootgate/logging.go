// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package bootgate

import (
	"io"
	"os"
	"slices"
	"strings"

	"github.com/siderolabs/go-kmsg"
	"github.com/siderolabs/go-procfs/procfs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/bootgate/internal/pkg/secureboot"
)

// DebugEnabled reports whether the kernel command line asks for debug logging.
func DebugEnabled(cmdline *procfs.Cmdline) bool {
	if cmdline == nil {
		return false
	}

	val := cmdline.Get(secureboot.KernelParamDebug).First()
	if val == nil {
		return false
	}

	return !slices.Contains([]string{"0", "false", "no", "off"}, strings.ToLower(*val))
}

// OpenKmsg opens the kernel log for writing.
func OpenKmsg() (io.WriteCloser, error) {
	f, err := os.OpenFile("/dev/kmsg", os.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK|unix.O_NOCTTY, 0o666)
	if err != nil {
		return nil, err
	}

	return &kmsgCloser{Writer: &kmsg.Writer{KmsgWriter: f}, f: f}, nil
}

type kmsgCloser struct {
	*kmsg.Writer

	f *os.File
}

func (k *kmsgCloser) Close() error {
	return k.f.Close()
}

// NewLogger creates the gate logger writing to w.
//
// Records carry no timestamps, the kernel log adds its own.
func NewLogger(w io.Writer, debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	encoderConfig.NameKey = "logger"

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(zapcore.AddSync(w)), level)

	return zap.New(core).Named("bootgate")
}
