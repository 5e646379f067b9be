// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siderolabs/bootgate/internal/pkg/secureboot/provision"
)

var digestCmdFlags struct {
	hash   string
	output string
	force  bool
}

// digestCmd represents the `digest` command.
var digestCmd = &cobra.Command{
	Use:   "digest <image>",
	Short: "Measures a boot image",
	Long:  `Prints the digest of the image in hex, or writes the raw digest to --output.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := provision.ParseHashAlgorithm(digestCmdFlags.hash)
		if err != nil {
			return err
		}

		digest, err := provision.DigestFile(args[0], h)
		if err != nil {
			return err
		}

		if digestCmdFlags.output == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hex.EncodeToString(digest), args[0])

			return nil
		}

		return provision.CheckedWrite(digestCmdFlags.output, digest, 0o644, digestCmdFlags.force, newLogger())
	},
}

func init() {
	digestCmd.Flags().StringVar(&digestCmdFlags.hash, "hash", string(provision.SHA512), "hash algorithm (sha256, sha512, blake3)")
	digestCmd.Flags().StringVarP(&digestCmdFlags.output, "output", "o", "", "write the raw digest to the file")
	digestCmd.Flags().BoolVar(&digestCmdFlags.force, "force", false, "overwrite existing files")
	rootCmd.AddCommand(digestCmd)
}
