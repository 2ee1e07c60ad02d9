package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendant/hr-tenancy/internal/config"
	"github.com/tendant/hr-tenancy/internal/tenancy"
	"github.com/tendant/hr-tenancy/pkg/auth"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

type backendRunner func(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error

func newCreateAccountCmd(run backendRunner, planeName *string) *cobra.Command {
	var name, email, password, role string

	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Create an account; on the control plane this seeds a superadmin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role == "" {
				role = domain.RoleSuperadmin
				if config.Plane(*planeName) == config.PlaneTenant {
					role = domain.RoleClientAdmin
				}
			}
			if err := auth.ValidateEmail(email); err != nil {
				return err
			}
			if err := auth.DefaultPasswordPolicy().ValidatePassword(password); err != nil {
				return err
			}

			return run(cmd, func(ctx context.Context, b *backend) error {
				account, err := auth.NewAccount(name, email, password, role)
				if err != nil {
					return err
				}
				if err := b.accounts.Create(ctx, account); err != nil {
					return err
				}
				cmd.Printf("created %s account %s (%s)\n", account.Role, account.Email, account.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", "", "role (default superadmin on the control plane, client-admin on a tenant)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the Argon2id hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}
}

func newRevokeSessionsCmd(run backendRunner) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "revoke-sessions",
		Short: "Invalidate every refresh token of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, b *backend) error {
				account, err := b.accounts.GetByEmail(ctx, auth.NormalizeEmail(email))
				if err != nil {
					return err
				}
				version, err := b.accounts.IncrementTokenVersion(ctx, account.ID)
				if err != nil {
					return err
				}
				cmd.Printf("revoked sessions of %s (token version %d)\n", account.Email, version)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSetActiveCmd(run backendRunner) *cobra.Command {
	var email string
	var active bool

	cmd := &cobra.Command{
		Use:   "set-active",
		Short: "Enable or disable an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, b *backend) error {
				account, err := b.accounts.GetByEmail(ctx, auth.NormalizeEmail(email))
				if err != nil {
					return err
				}
				if err := b.accounts.SetActive(ctx, account.ID, active); err != nil {
					return err
				}
				// A disabled account cannot log in; its refresh tokens are revoked too.
				if !active {
					if _, err := b.accounts.IncrementTokenVersion(ctx, account.ID); err != nil {
						return err
					}
				}
				cmd.Printf("%s active=%t\n", account.Email, active)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&active, "active", true, "whether the account may log in")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRetryProvisioningCmd(run backendRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-provisioning <tenant-id>",
		Short: "Re-send onboard-admin to a tenant instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			return run(cmd, func(ctx context.Context, b *backend) error {
				if b.registry == nil {
					return errors.New("retry-provisioning runs against the control plane")
				}
				result, err := b.registry.RetryProvisioning(ctx, id)
				if err != nil {
					if tenancy.IsProvisioningFailure(err) {
						return fmt.Errorf("tenant %s still unreachable: %w", id, err)
					}
					return err
				}
				cmd.Printf("tenant %s provisioned\n", result.Tenant.Domain)
				if result.TempPassword != "" {
					cmd.Printf("new admin temp password for %s: %s\n", result.Tenant.AdminEmail, result.TempPassword)
				}
				return nil
			})
		},
	}
}
