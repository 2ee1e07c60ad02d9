// Command hr-admin performs operator tasks against a plane's database:
// seeding superadmins, revoking sessions and retrying tenant provisioning.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/hr-tenancy/internal/config"
	"github.com/tendant/hr-tenancy/internal/tenancy"
	"github.com/tendant/hr-tenancy/pkg/domain"
	"github.com/tendant/hr-tenancy/pkg/repository"
	"github.com/tendant/hr-tenancy/plane"
)

// accountStore is the subset of the account repository the commands use.
type accountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type provisioningRetrier interface {
	RetryProvisioning(ctx context.Context, id uuid.UUID) (*tenancy.OnboardResult, error)
}

// backend is what a command runs against. registry is nil on a tenant plane.
type backend struct {
	accounts accountStore
	registry provisioningRetrier
	close    func()
}

type opener func(ctx context.Context, p config.Plane) (*backend, error)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := newRootCmd(os.Stdout, openBackend(logger)).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func openBackend(logger *slog.Logger) opener {
	return func(ctx context.Context, p config.Plane) (*backend, error) {
		cfg, err := config.Load(p)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		db, err := repository.NewDB(repository.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return nil, err
		}

		opts := plane.Options{DB: db, Config: cfg, Logger: logger}
		var wired *plane.Plane
		if p == config.PlaneControl {
			wired, err = plane.NewControlPlane(opts)
		} else {
			wired, err = plane.NewTenant(opts)
		}
		if err != nil {
			db.Close()
			return nil, err
		}

		b := &backend{accounts: wired.Accounts(), close: func() { db.Close() }}
		if r := wired.Registry(); r != nil {
			b.registry = r
		}
		return b, nil
	}
}

func newRootCmd(out io.Writer, open opener) *cobra.Command {
	var planeName string

	root := &cobra.Command{
		Use:          "hr-admin",
		Short:        "Operator tasks for the HR control plane and tenant instances",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().StringVar(&planeName, "plane", string(config.PlaneControl), "plane whose database to use (control-plane or tenant)")

	withBackend := func(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
		p := config.Plane(planeName)
		if p != config.PlaneControl && p != config.PlaneTenant {
			return fmt.Errorf("unknown plane %q", planeName)
		}
		b, err := open(cmd.Context(), p)
		if err != nil {
			return err
		}
		if b.close != nil {
			defer b.close()
		}
		return fn(cmd.Context(), b)
	}

	root.AddCommand(
		newCreateAccountCmd(withBackend, &planeName),
		newHashPasswordCmd(),
		newRevokeSessionsCmd(withBackend),
		newSetActiveCmd(withBackend),
		newRetryProvisioningCmd(withBackend),
	)
	return root
}
