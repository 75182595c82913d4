package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-staking/pkg/crypto"
)

func newMintCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Manage token mints",
	}

	var (
		payer     string
		authority string
		decimals  uint8
	)
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a mint and store its keypair under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payerKey, err := a.loadKey(payer)
			if err != nil {
				return err
			}
			mintAuthority := payerKey.PublicKey()
			if authority != "" {
				if mintAuthority, err = a.resolveAddress(authority); err != nil {
					return err
				}
			}
			mint, err := crypto.NewKeypair()
			if err != nil {
				return err
			}
			if err := a.saveKey(args[0], mint, false); err != nil {
				return err
			}

			return a.withSession(func(s *session) error {
				res, err := s.client.CreateMint(commandContext(cmd), payerKey, mint, mintAuthority, decimals)
				if err := printResult(cmd.OutOrStdout(), res, err); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mint: %s\n", mint.PublicKey())
				return nil
			})
		},
	}
	create.Flags().StringVar(&payer, "payer", "", "Keypair paying for the mint account")
	create.Flags().StringVar(&authority, "authority", "", "Mint authority (default: payer)")
	create.Flags().Uint8Var(&decimals, "decimals", 9, "Token decimals")
	_ = create.MarkFlagRequired("payer")

	cmd.AddCommand(create)
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage token accounts",
	}
	cmd.AddCommand(newTokenCreateAccountCmd(a), newTokenMintToCmd(a), newTokenBalanceCmd(a))
	return cmd
}

func newTokenCreateAccountCmd(a *app) *cobra.Command {
	var payer, mint, owner string
	cmd := &cobra.Command{
		Use:   "create-account NAME",
		Short: "Create a token account and store its keypair under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payerKey, err := a.loadKey(payer)
			if err != nil {
				return err
			}
			mintAddress, err := a.resolveAddress(mint)
			if err != nil {
				return err
			}
			holder := payerKey.PublicKey()
			if owner != "" {
				if holder, err = a.resolveAddress(owner); err != nil {
					return err
				}
			}
			account, err := crypto.NewKeypair()
			if err != nil {
				return err
			}
			if err := a.saveKey(args[0], account, false); err != nil {
				return err
			}

			return a.withSession(func(s *session) error {
				res, err := s.client.CreateTokenAccount(commandContext(cmd), payerKey, account, mintAddress, holder)
				if err := printResult(cmd.OutOrStdout(), res, err); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token account: %s\n", account.PublicKey())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payer, "payer", "", "Keypair paying for the account")
	cmd.Flags().StringVar(&mint, "mint", "", "Mint of the account")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner of the account (default: payer)")
	_ = cmd.MarkFlagRequired("payer")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func newTokenMintToCmd(a *app) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "mint-to MINT DESTINATION AMOUNT",
		Short: "Mint tokens into a token account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			authorityKey, err := a.loadKey(authority)
			if err != nil {
				return err
			}
			mint, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			destination, err := a.resolveAddress(args[1])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return errors.Wrap(err, "invalid amount")
			}

			return a.withSession(func(s *session) error {
				res, err := s.client.MintTo(commandContext(cmd), authorityKey, mint, destination, amount)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "Mint authority keypair")
	_ = cmd.MarkFlagRequired("authority")
	return cmd
}

func newTokenBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance ACCOUNT",
		Short: "Print the balance of a token account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			return a.withSession(func(s *session) error {
				account, err := s.client.GetTokenAccount(address)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", account.Amount)
				return nil
			})
		},
	}
}
