// stakectl operates a local staking ledger: it manages keys, submits token
// and staking transactions, moves ledger snapshots and serves the JSON-RPC
// and metrics endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := newApp()

	cmd := &cobra.Command{
		Use:           "stakectl",
		Short:         "Staking ledger operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	a.bindFlags(cmd)

	cmd.AddCommand(
		newVersionCmd(),
		newKeygenCmd(a),
		newAddressCmd(a),
		newAirdropCmd(a),
		newBalanceCmd(a),
		newMintCmd(a),
		newTokenCmd(a),
		newPoolCmd(a),
		newStakeCmd(a),
		newUnstakeCmd(a),
		newClaimCmd(a),
		newUserCmd(a),
		newSnapshotCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stakectl %s (%s)\n", Version, GitCommit)
		},
	}
}
