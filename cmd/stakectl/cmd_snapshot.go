package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-staking/pkg/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export, import and verify ledger snapshots",
	}
	cmd.AddCommand(newSnapshotExportCmd(a), newSnapshotImportCmd(a), newSnapshotVerifyCmd())
	return cmd
}

func printManifest(w io.Writer, m *snapshot.Manifest) {
	fmt.Fprintf(w, "Version:        %d\n", m.Version)
	fmt.Fprintf(w, "Created at:     %d\n", m.CreatedAt)
	if m.ProgramID != "" {
		fmt.Fprintf(w, "Program:        %s\n", m.ProgramID)
	}
	fmt.Fprintf(w, "Accounts:       %d\n", m.AccountsCount)
	fmt.Fprintf(w, "Lamports:       %d\n", m.LamportsTotal)
	fmt.Fprintf(w, "Accounts hash:  %s\n", m.AccountsHash)
}

func newSnapshotExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export PATH",
		Short: "Write the whole ledger to a snapshot archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.cfg.OpenLedger(a.log)
			if err != nil {
				return errors.Wrap(err, "failed to open ledger")
			}
			defer db.Close()

			manifest, err := snapshot.ExportFile(db, args[0], snapshot.ExportOptions{
				ProgramID: a.cfg.StakingProgramID(),
			})
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), manifest)
			return nil
		},
	}
}

func newSnapshotImportCmd(a *app) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "import PATH",
		Short: "Load a snapshot archive into an empty ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.cfg.OpenLedger(a.log)
			if err != nil {
				return errors.Wrap(err, "failed to open ledger")
			}
			defer db.Close()

			loader := snapshot.NewSnapshotLoader(a.log, db, snapshot.LoadConfig{
				BatchSize: batchSize,
				ProgressCallback: func(p snapshot.LoadProgress) {
					a.log.WithFields(logrus.Fields{
						"processed": p.AccountsProcessed,
						"total":     p.AccountsTotal,
					}).Info("importing accounts")
				},
			})
			result, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), result.Manifest)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported:       %d\n", result.AccountsLoaded)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", snapshot.DefaultLoadConfig().BatchSize, "Accounts written per batch")
	return cmd
}

func newSnapshotVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify PATH",
		Short: "Check a snapshot archive without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := snapshot.VerifySnapshotWithResult(args[0])
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), result.Manifest)
			if !result.AccountsHashValid {
				return errors.Wrapf(snapshot.ErrHashMismatch, "computed %s", result.ComputedAccountsHash)
			}
			if !result.LamportsValid {
				return errors.Wrapf(snapshot.ErrInvalidManifest, "computed %d lamports", result.LamportsTotal)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}
