package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/girderhq/api/internal/infra/postgres"
	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/role"
	"github.com/girderhq/api/pkg/domain/shared"
)

var seedRolesFile string

var seedCmd = &cobra.Command{
	Use:   "seed-rbac",
	Short: "Seed the permission catalog and role definitions",
	Long: `seed-rbac writes the permission catalog into the database and creates
or updates the role definitions. Roles are read from a YAML file; without
--roles-file the built-in defaults are used.

The command is idempotent: existing permissions keep their ids, and
existing roles have their permission bundles replaced.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedRolesFile, "roles-file", "", "YAML file with role definitions")
}

// roleDefinition is the YAML shape for one role.
type roleDefinition struct {
	Name        string   `yaml:"name"`
	Slug        string   `yaml:"slug"`
	Scope       string   `yaml:"scope"`
	Permissions []string `yaml:"permissions"`
}

type roleFile struct {
	Roles []roleDefinition `yaml:"roles"`
}

func runSeed(cmd *cobra.Command, _ []string) error {
	db, log, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	roleRepo := postgres.NewRoleRepository(db)

	if err := roleRepo.SeedPermissions(ctx, permissionCatalog()); err != nil {
		return err
	}
	log.Info("permission catalog seeded", "count", len(permission.All()))

	defs, err := loadRoleDefinitions()
	if err != nil {
		return err
	}

	for _, def := range defs {
		if err := seedRole(ctx, roleRepo, def); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", def.Slug, err)
		}
		log.Info("role seeded", "slug", def.Slug, "permissions", len(def.Permissions))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "RBAC seed completed")
	return nil
}

func seedRole(ctx context.Context, repo *postgres.RoleRepository, def roleDefinition) error {
	codes := make([]permission.Code, 0, len(def.Permissions))
	for _, raw := range def.Permissions {
		c := permission.Code(raw)
		if !permission.IsKnown(c) {
			return fmt.Errorf("unknown permission code %q", raw)
		}
		codes = append(codes, c)
	}

	existing, err := repo.GetBySlug(ctx, def.Slug)
	if err == nil {
		return repo.SetPermissions(ctx, existing.ID(), def.Permissions)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	scope := role.Scope(def.Scope)
	r, err := role.New(def.Name, def.Slug, scope, codes)
	if err != nil {
		return err
	}
	return repo.Create(ctx, r)
}

func loadRoleDefinitions() ([]roleDefinition, error) {
	if seedRolesFile == "" {
		return defaultRoles(), nil
	}

	data, err := os.ReadFile(seedRolesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}

	var f roleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse roles file: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("roles file %s defines no roles", seedRolesFile)
	}
	return f.Roles, nil
}

// permissionCatalog derives a human-readable description for every known
// permission code from its module and action.
func permissionCatalog() map[permission.Code]string {
	caser := cases.Title(language.English)
	catalog := make(map[permission.Code]string, len(permission.All()))
	for _, c := range permission.All() {
		module := strings.ReplaceAll(c.Module(), ".", " ")
		catalog[c] = fmt.Sprintf("%s: %s", caser.String(module), c.Action())
	}
	return catalog
}

// defaultRoles is the built-in role set used when no YAML file is given.
func defaultRoles() []roleDefinition {
	all := make([]string, 0, len(permission.All()))
	for _, c := range permission.All() {
		all = append(all, c.String())
	}

	return []roleDefinition{
		{
			Name:        "Admin",
			Slug:        "admin",
			Scope:       "tenant",
			Permissions: all,
		},
		{
			Name:  "Project Manager",
			Slug:  "project_manager",
			Scope: "tenant",
			Permissions: []string{
				"project.view", "project.create", "project.edit",
				"task.view", "task.create", "task.edit", "task.delete", "task.assign",
				"rfi.view", "rfi.create", "rfi.respond",
				"contract.view",
				"notification.view",
				"role.view",
			},
		},
		{
			Name:  "Engineer",
			Slug:  "engineer",
			Scope: "tenant",
			Permissions: []string{
				"project.view",
				"task.view", "task.create", "task.edit",
				"rfi.view", "rfi.create", "rfi.respond",
				"notification.view",
			},
		},
		{
			Name:  "Accountant",
			Slug:  "accountant",
			Scope: "tenant",
			Permissions: []string{
				"project.view",
				"contract.view", "contract.create", "contract.edit",
				"contract.payment.view", "contract.payment.create",
				"notification.view",
			},
		},
		{
			Name:  "Viewer",
			Slug:  "viewer",
			Scope: "tenant",
			Permissions: []string{
				"project.view", "task.view", "rfi.view", "contract.view",
				"notification.view",
			},
		},
	}
}
