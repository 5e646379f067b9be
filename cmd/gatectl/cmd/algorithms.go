// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/siderolabs/bootgate/internal/pkg/secureboot"
	"github.com/siderolabs/bootgate/internal/pkg/signature"
)

// algorithmsCmd represents the `algorithms` command.
var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "Lists the signature algorithms the gate accepts",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)

		fmt.Fprintln(w, "ALGORITHM\tPUBLIC KEY\tSIGNATURE\tDEFAULT")

		primitive := signature.Circl{}

		for _, id := range primitive.Algorithms() {
			d, _ := signature.Describe(primitive, id)

			def := ""
			if id == secureboot.DefaultAlgorithm {
				def = "*"
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, humanize.IBytes(uint64(d.PublicKeySize)), humanize.IBytes(uint64(d.SignatureSize)), def)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(algorithmsCmd)
}
