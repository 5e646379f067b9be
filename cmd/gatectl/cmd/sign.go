// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ecks/uefi/efi/efivario"
	"github.com/spf13/cobra"

	"github.com/siderolabs/bootgate/internal/pkg/artifact"
	"github.com/siderolabs/bootgate/internal/pkg/secret"
	"github.com/siderolabs/bootgate/internal/pkg/secureboot"
	"github.com/siderolabs/bootgate/internal/pkg/secureboot/provision"
	"github.com/siderolabs/bootgate/internal/pkg/signature"
)

var signCmdFlags struct {
	algorithm       string
	hash            string
	image           string
	digest          string
	privateKey      string
	outputDirectory string
	efivar          bool
	vendorGUID      string
	force           bool
}

// signCmd represents the `sign` command.
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Signs a boot image and writes the gate artifacts",
	Long: `Measures the image (or reads a precomputed digest), signs the digest and writes
the digest, the public key and the signature either to the output directory or
to UEFI variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (signCmdFlags.image == "") == (signCmdFlags.digest == "") {
			return errors.New("exactly one of --image and --digest is required")
		}

		a, err := signArtifacts()
		if err != nil {
			return err
		}

		names := artifact.DefaultNames()
		logger := newLogger()

		if signCmdFlags.efivar {
			err = provision.WriteEFIVars(efivario.NewDefaultContext(), signCmdFlags.vendorGUID, names, a, logger)
		} else {
			err = provision.WriteArtifacts(signCmdFlags.outputDirectory, names, a, signCmdFlags.force, logger)
		}

		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "signed %d byte digest with %s\n", len(a.Digest), signCmdFlags.algorithm)

		return nil
	},
}

func signArtifacts() (provision.Artifacts, error) {
	scheme, err := signature.Circl{}.Scheme(signCmdFlags.algorithm)
	if err != nil {
		return provision.Artifacts{}, err
	}

	var digest []byte

	if signCmdFlags.image != "" {
		h, err := provision.ParseHashAlgorithm(signCmdFlags.hash)
		if err != nil {
			return provision.Artifacts{}, err
		}

		if digest, err = provision.DigestFile(signCmdFlags.image, h); err != nil {
			return provision.Artifacts{}, err
		}
	} else if digest, err = os.ReadFile(signCmdFlags.digest); err != nil {
		return provision.Artifacts{}, err
	}

	privateKey, err := secret.ReadFile(signCmdFlags.privateKey)
	if err != nil {
		return provision.Artifacts{}, fmt.Errorf("failed to read private key: %w", err)
	}

	defer privateKey.Release() //nolint:errcheck

	sig, err := provision.Sign(scheme, privateKey, digest)
	if err != nil {
		return provision.Artifacts{}, err
	}

	publicKey, err := provision.PublicKey(scheme, privateKey)
	if err != nil {
		return provision.Artifacts{}, err
	}

	return provision.Artifacts{Digest: digest, PublicKey: publicKey, Signature: sig}, nil
}

func init() {
	signCmd.Flags().StringVar(&signCmdFlags.algorithm, "algorithm", secureboot.DefaultAlgorithm, "signature algorithm")
	signCmd.Flags().StringVar(&signCmdFlags.hash, "hash", string(provision.SHA512), "hash algorithm used to measure --image")
	signCmd.Flags().StringVar(&signCmdFlags.image, "image", "", "path to the next stage image to measure")
	signCmd.Flags().StringVar(&signCmdFlags.digest, "digest", "", "path to a precomputed raw digest")
	signCmd.Flags().StringVar(&signCmdFlags.privateKey, "private-key", filepath.Join("_out", secureboot.PrivateKeyAsset), "path to the private key")
	signCmd.Flags().StringVarP(&signCmdFlags.outputDirectory, "output", "o", "_out", "path to the directory storing the artifacts")
	signCmd.Flags().BoolVar(&signCmdFlags.efivar, "efivar", false, "write the artifacts to UEFI variables instead of files")
	signCmd.Flags().StringVar(&signCmdFlags.vendorGUID, "vendor-guid", secureboot.VendorGUIDString, "vendor GUID of the UEFI variables")
	signCmd.Flags().BoolVar(&signCmdFlags.force, "force", false, "overwrite existing files")
	rootCmd.AddCommand(signCmd)
}
