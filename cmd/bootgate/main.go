// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main is the boot gate executable.
package main

import (
	_ "embed"
	"io"
	"os"

	"github.com/siderolabs/go-procfs/procfs"

	"github.com/siderolabs/bootgate/internal/app/bootgate"
)

// configData is fixed at build time, the gate never reads configuration from the media it verifies.
//
//go:embed gate.yaml
var configData []byte

func main() {
	var out io.Writer = os.Stderr

	if w, err := bootgate.OpenKmsg(); err == nil {
		defer w.Close() //nolint:errcheck

		out = w
	}

	logger := bootgate.NewLogger(out, bootgate.DebugEnabled(procfs.ProcCmdline()))
	defer logger.Sync() //nolint:errcheck

	bootgate.Main(configData, logger, bootgate.Collaborators{})
}
