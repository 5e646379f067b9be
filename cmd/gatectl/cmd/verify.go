// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siderolabs/bootgate/internal/pkg/chain"
	"github.com/siderolabs/bootgate/internal/pkg/config"
	"github.com/siderolabs/bootgate/internal/pkg/gate"
	"github.com/siderolabs/bootgate/internal/pkg/signature"
)

var verifyCmdFlags struct {
	configPath string
	root       string
	algorithm  string
}

// verifyCmd represents the `verify` command.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Runs the boot gate against artifacts without starting the next stage",
	Long: `Runs the full gate state machine against the artifacts and reports the decision.
The next stage is never started, the exit status is the one the gate would halt with.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()

		if verifyCmdFlags.configPath != "" {
			var err error

			if cfg, err = config.Load(verifyCmdFlags.configPath); err != nil {
				return err
			}
		}

		if verifyCmdFlags.root != "" {
			cfg.Artifacts.Source = config.SourceFile
			cfg.Artifacts.Root = verifyCmdFlags.root
		}

		if verifyCmdFlags.algorithm != "" {
			cfg.Algorithm = verifyCmdFlags.algorithm
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		result, err := dryRun(cfg)
		if err != nil {
			return err
		}

		printResult(cmd.OutOrStdout(), result)

		if result.Halted() {
			return &exitError{code: result.Reason().ExitCode(), err: result.Err}
		}

		return nil
	},
}

// dryRun runs the gate with a loader which only records the image.
func dryRun(cfg *config.Config) (gate.Result, error) {
	logger := newLogger()

	store, err := cfg.NewStore(logger)
	if err != nil {
		return gate.Result{}, err
	}

	loader := chain.LoaderFunc(func(chain.Image) error {
		logger.Info("dry run, not starting next stage")

		return nil
	})

	return gate.New(signature.Circl{}, store, loader, gate.Options{
		Algorithm: cfg.Algorithm,
		Names:     cfg.Artifacts.Names,
		Image:     cfg.Image(),
		Logger:    logger,
	}).Run(), nil
}

func printResult(w io.Writer, result gate.Result) {
	verdict := color.New(color.FgGreen, color.Bold).Sprint("VERIFIED")
	if result.Halted() {
		verdict = color.New(color.FgRed, color.Bold).Sprint("HALTED")
	}

	fmt.Fprintf(w, "attempt:  %s\n", result.AttemptID)
	fmt.Fprintf(w, "verdict:  %s\n", verdict)
	fmt.Fprintf(w, "decision: %s\n", result.Decision)

	if result.Halted() {
		reason := result.Reason()

		fmt.Fprintf(w, "reason:   %s (%s, exit code %d)\n", reason, reason.Category(), reason.ExitCode())
	}
}

func init() {
	verifyCmd.Flags().StringVar(&verifyCmdFlags.configPath, "config", "", "path to the gate configuration")
	verifyCmd.Flags().StringVar(&verifyCmdFlags.root, "root", "", "directory holding the artifacts, overrides the configuration")
	verifyCmd.Flags().StringVar(&verifyCmdFlags.algorithm, "algorithm", "", "signature algorithm, overrides the configuration")
	rootCmd.AddCommand(verifyCmd)
}
