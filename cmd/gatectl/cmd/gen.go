// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/siderolabs/bootgate/internal/pkg/secureboot"
	"github.com/siderolabs/bootgate/internal/pkg/secureboot/provision"
	"github.com/siderolabs/bootgate/internal/pkg/signature"
)

var genCmdFlags struct {
	outputDirectory string
	force           bool
}

// genCmd represents the `gen` command.
var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate boot gate secrets",
	Long:  ``,
}

var genKeysCmdFlags struct {
	algorithm string
}

// genKeysCmd represents the `gen keys` command.
var genKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generates a key pair used to sign the next boot stage",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return generateKeys(cmd, genCmdFlags.outputDirectory, genKeysCmdFlags.algorithm, genCmdFlags.force)
	},
}

func generateKeys(cmd *cobra.Command, path, algorithm string, force bool) error {
	scheme, err := signature.Circl{}.Scheme(algorithm)
	if err != nil {
		return err
	}

	publicKey, privateKey, err := provision.GenerateKeyPair(scheme)
	if err != nil {
		return err
	}

	defer privateKey.Release() //nolint:errcheck

	logger := newLogger()

	if err = provision.CheckedWrite(filepath.Join(path, secureboot.PrivateKeyAsset), privateKey.Bytes(), 0o600, force, logger); err != nil {
		return err
	}

	if err = provision.CheckedWrite(filepath.Join(path, secureboot.PublicKeyAsset), publicKey, 0o644, force, logger); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "generated %s key pair in %s (public key %s, private key %s)\n",
		scheme.Name(), path,
		humanize.IBytes(uint64(len(publicKey))), humanize.IBytes(uint64(privateKey.Len())),
	)

	return nil
}

func init() {
	genCmd.PersistentFlags().StringVarP(&genCmdFlags.outputDirectory, "output", "o", "_out", "path to the directory storing the generated files")
	genCmd.PersistentFlags().BoolVar(&genCmdFlags.force, "force", false, "overwrite existing files")
	rootCmd.AddCommand(genCmd)

	genKeysCmd.Flags().StringVar(&genKeysCmdFlags.algorithm, "algorithm", secureboot.DefaultAlgorithm, "signature algorithm")
	genCmd.AddCommand(genKeysCmd)
}
