package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/girderhq/api/internal/infra/postgres"
	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/tenant"
	"github.com/girderhq/api/pkg/domain/user"
	"github.com/girderhq/api/pkg/password"
)

var (
	bootstrapTenantName string
	bootstrapTenantSlug string
	bootstrapEmail      string
	bootstrapName       string
	bootstrapPassword   string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first tenant and its admin user",
	Long: `bootstrap creates a tenant, an admin user, and the membership linking
them, marked as the user's default tenant. Run seed-rbac first so the
admin role exists.

If the user already exists it is reused and only the membership is
created, so the command can add an existing operator to a new tenant.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().StringVar(&bootstrapTenantName, "tenant-name", "", "Tenant display name (required)")
	bootstrapCmd.Flags().StringVar(&bootstrapTenantSlug, "tenant-slug", "", "Tenant slug (required)")
	bootstrapCmd.Flags().StringVar(&bootstrapEmail, "email", "", "Admin user email (required)")
	bootstrapCmd.Flags().StringVar(&bootstrapName, "name", "Admin", "Admin user display name")
	bootstrapCmd.Flags().StringVar(&bootstrapPassword, "password", "", "Admin user password (required for new users)")

	_ = bootstrapCmd.MarkFlagRequired("tenant-name")
	_ = bootstrapCmd.MarkFlagRequired("tenant-slug")
	_ = bootstrapCmd.MarkFlagRequired("email")
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	db, log, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	userRepo := postgres.NewUserRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)
	roleRepo := postgres.NewRoleRepository(db)

	adminRole, err := roleRepo.GetBySlug(ctx, "admin")
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("admin role not found; run seed-rbac first")
		}
		return err
	}

	t, err := tenant.New(bootstrapTenantName, bootstrapTenantSlug)
	if err != nil {
		return err
	}
	if err := tenantRepo.Create(ctx, t); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	log.Info("tenant created", "tenant_id", t.ID(), "slug", t.Slug())

	u, err := userRepo.GetByEmail(ctx, bootstrapEmail)
	switch {
	case err == nil:
		log.Info("existing user reused", "user_id", u.ID(), "email", u.Email())
	case errors.Is(err, shared.ErrNotFound):
		if bootstrapPassword == "" {
			return fmt.Errorf("--password is required when creating a new user")
		}

		hasher := password.New()
		hash, err := hasher.Hash(bootstrapPassword)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		u, err = user.New(bootstrapEmail, bootstrapName, hash)
		if err != nil {
			return err
		}
		if err := userRepo.Create(ctx, u); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		log.Info("user created", "user_id", u.ID(), "email", u.Email())
	default:
		return err
	}

	// The membership is created non-default and promoted afterwards; the
	// promotion clears any default the user already has elsewhere.
	m, err := tenant.NewMembership(u.ID(), t.ID(), adminRole.ID(), false)
	if err != nil {
		return err
	}
	if err := tenantRepo.AddMember(ctx, m); err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	if err := tenantRepo.SetDefaultTenant(ctx, u.ID(), t.ID()); err != nil {
		return fmt.Errorf("failed to set default tenant: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap complete: tenant %s (%s), admin %s\n",
		t.Name(), t.ID(), u.Email())
	return nil
}
