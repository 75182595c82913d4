package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fortiblox/x1-staking/pkg/crypto"
	"github.com/fortiblox/x1-staking/pkg/types"
)

func parseAmount(s string) (uint64, error) {
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "invalid amount")
	}
	return amount, nil
}

func newPoolCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Manage staking pools",
	}
	cmd.AddCommand(newPoolInitCmd(a), newPoolFundCmd(a), newPoolShowCmd(a))
	return cmd
}

func newPoolInitCmd(a *app) *cobra.Command {
	var (
		admin string
		vault string
		rate  uint64
	)
	cmd := &cobra.Command{
		Use:   "init MINT",
		Short: "Create the staking pool of a mint",
		Long: "Create the staking pool of a mint. Without --vault a new token account " +
			"held by the pool authority is created first and used as the vault.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminKey, err := a.loadKey(admin)
			if err != nil {
				return err
			}
			mint, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			var vaultAddress types.Pubkey
			if vault != "" {
				if vaultAddress, err = a.resolveAddress(vault); err != nil {
					return err
				}
			}

			return a.withSession(func(s *session) error {
				ctx := commandContext(cmd)
				if vault == "" {
					pool, err := s.client.PoolAddress(mint)
					if err != nil {
						return err
					}
					account, err := crypto.NewKeypair()
					if err != nil {
						return err
					}
					res, err := s.client.CreateTokenAccount(ctx, adminKey, account, mint, pool)
					if err := printResult(cmd.OutOrStdout(), res, err); err != nil {
						return errors.Wrap(err, "failed to create vault")
					}
					vaultAddress = account.PublicKey()
					fmt.Fprintf(cmd.OutOrStdout(), "Vault: %s\n", vaultAddress)
				}

				res, err := s.client.InitializePool(ctx, adminKey, vaultAddress, mint, rate)
				if err := printResult(cmd.OutOrStdout(), res, err); err != nil {
					return err
				}
				pool, err := s.client.PoolAddress(mint)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pool: %s\n", pool)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "Administrator keypair, pays for the pool")
	cmd.Flags().StringVar(&vault, "vault", "", "Existing vault token account held by the pool authority")
	cmd.Flags().Uint64Var(&rate, "rate", 0, "Reward units per staked token per second")
	_ = cmd.MarkFlagRequired("admin")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}

func newPoolFundCmd(a *app) *cobra.Command {
	var funder, from string
	cmd := &cobra.Command{
		Use:   "fund MINT AMOUNT",
		Short: "Deposit reward tokens into a pool vault",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			funderKey, err := a.loadKey(funder)
			if err != nil {
				return err
			}
			mint, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			source, err := a.resolveAddress(from)
			if err != nil {
				return err
			}

			return a.withSession(func(s *session) error {
				res, err := s.client.FundRewards(commandContext(cmd), funderKey, source, mint, amount)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
	cmd.Flags().StringVar(&funder, "funder", "", "Keypair owning the source token account")
	cmd.Flags().StringVar(&from, "from", "", "Source token account")
	_ = cmd.MarkFlagRequired("funder")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newPoolShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show MINT",
		Short: "Print the pool of a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			return a.withSession(func(s *session) error {
				address, err := s.client.PoolAddress(mint)
				if err != nil {
					return err
				}
				pool, err := s.client.GetPool(mint)
				if err != nil {
					return err
				}
				vault, err := s.client.GetTokenAccount(pool.Vault)
				if err != nil {
					return errors.Wrap(err, "failed to read vault")
				}
				printPool(cmd.OutOrStdout(), address, pool, vault.Amount)
				return nil
			})
		},
	}
}

// positionFlags are shared by stake, unstake and claim.
type positionFlags struct {
	user  string
	token string
}

func (f *positionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "Staker keypair")
	cmd.Flags().StringVar(&f.token, "token", "", "Staker token account")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("token")
}

func (f *positionFlags) resolve(a *app, mintArg string) (*crypto.Keypair, types.Pubkey, types.Pubkey, error) {
	user, err := a.loadKey(f.user)
	if err != nil {
		return nil, types.Pubkey{}, types.Pubkey{}, err
	}
	userToken, err := a.resolveAddress(f.token)
	if err != nil {
		return nil, types.Pubkey{}, types.Pubkey{}, err
	}
	mint, err := a.resolveAddress(mintArg)
	if err != nil {
		return nil, types.Pubkey{}, types.Pubkey{}, err
	}
	return user, userToken, mint, nil
}

func newStakeCmd(a *app) *cobra.Command {
	var flags positionFlags
	cmd := &cobra.Command{
		Use:   "stake MINT AMOUNT",
		Short: "Stake tokens into the pool of a mint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, userToken, mint, err := flags.resolve(a, args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return a.withSession(func(s *session) error {
				res, err := s.client.Stake(commandContext(cmd), user, userToken, mint, amount)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newUnstakeCmd(a *app) *cobra.Command {
	var flags positionFlags
	cmd := &cobra.Command{
		Use:   "unstake MINT AMOUNT",
		Short: "Withdraw staked tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, userToken, mint, err := flags.resolve(a, args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return a.withSession(func(s *session) error {
				res, err := s.client.Unstake(commandContext(cmd), user, userToken, mint, amount)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newClaimCmd(a *app) *cobra.Command {
	var flags positionFlags
	cmd := &cobra.Command{
		Use:   "claim MINT",
		Short: "Pay out accrued rewards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, userToken, mint, err := flags.resolve(a, args[0])
			if err != nil {
				return err
			}
			return a.withSession(func(s *session) error {
				res, err := s.client.ClaimRewards(commandContext(cmd), user, userToken, mint)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect staking positions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show MINT OWNER",
		Short: "Print a staker's position in the pool of a mint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			owner, err := a.resolveAddress(args[1])
			if err != nil {
				return err
			}
			return a.withSession(func(s *session) error {
				address, err := s.client.UserStakeAddress(mint, owner)
				if err != nil {
					return err
				}
				position, err := s.client.GetUserStake(mint, owner)
				if err != nil {
					return err
				}
				printUserStake(cmd.OutOrStdout(), address, position)
				return nil
			})
		},
	})
	return cmd
}
