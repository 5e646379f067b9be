// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package secureboot contains base definitions for the boot trust gate.
package secureboot

// Well-known artifact file names on the boot volume.
//
// The blobs are raw bytes with no header, the length is implied by the blob size.
const (
	DigestAsset    = "hash.bin"
	PublicKeyAsset = "publickey.bin"
	SignatureAsset = "sig.bin"
	// PrivateKeyAsset never leaves the provisioning host.
	PrivateKeyAsset = "private_key.bin"
)

const (
	// DefaultAlgorithm is the signature scheme used when none is configured.
	//
	// ML-DSA-87 is the standardized form of Dilithium5 (NIST security level 5).
	DefaultAlgorithm = "ML-DSA-87"

	// DefaultArtifactsRoot is the directory of the boot volume which holds the gate artifacts.
	DefaultArtifactsRoot = "/boot/EFI/bootgate"

	// DefaultNextImage is the next-stage image started after a successful verification.
	DefaultNextImage = "/boot/EFI/BOOT/verif_kernel.efi"

	// DefaultMaxArtifactSize caps the size of a single artifact read from the store.
	DefaultMaxArtifactSize = 1 << 20
)

// VendorGUIDString is the GUID the gate artifacts are stored under when kept in EFI variables.
const VendorGUIDString = "b6a1c3e0-5d2f-4c8e-9a7b-3f1e2d4c5b6a"

// KernelParamDebug enables debug logging of the gate.
//
// Kernel parameters only ever affect diagnostics, never the trust decision.
const KernelParamDebug = "bootgate.debug"
