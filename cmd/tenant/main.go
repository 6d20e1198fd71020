// Package main provides CLI for account management.
// Usage: tenant migrate
//
//	tenant create --email jane@example.com --company "ACME" [--tier BASIC]
//	tenant list
//	tenant set-tier <tenant-id> <tier>
//	tenant token <tenant-id>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"easyentrepreneur/internal/config"
	"easyentrepreneur/internal/core/tenant"
	"easyentrepreneur/internal/domain/auth"
	"easyentrepreneur/internal/infrastructure/storage/postgres"
	"easyentrepreneur/internal/infrastructure/storage/postgres/schema"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "migrate":
		migrate(ctx)
	case "create":
		createTenant(ctx)
	case "list":
		listTenants(ctx)
	case "set-tier":
		setTier(ctx)
	case "token":
		issueToken(ctx)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`EasyEntrepreneur Account CLI

Usage:
  tenant <command> [options]

Commands:
  migrate   Create missing tables and indexes
  create    Register a new account
  list      List all accounts
  set-tier  Change the subscription tier of an account
  token     Issue an access token for an account
  help      Show this help

Configuration is read from config.yaml and EASYENTREPRENEUR_* environment variables.

Examples:
  tenant migrate
  tenant create --email jane@example.com --company "ACME SARL" --tier BASIC
  tenant list
  tenant set-tier <tenant-uuid> PREMIUM
  tenant token <tenant-uuid>`)
}

func mustConfig() *config.Configuration {
	cfg, err := config.NewConfig()
	if err != nil {
		fail("load config", err)
	}
	return cfg
}

func mustPool(ctx context.Context, cfg *config.Configuration) *postgres.Pool {
	pool, err := postgres.NewPool(ctx, cfg.Postgres.PoolConfig("easyentrepreneur-cli"))
	if err != nil {
		fail("connect to database", err)
	}
	return pool
}

func migrate(ctx context.Context) {
	cfg := mustConfig()
	pool := mustPool(ctx, cfg)
	defer pool.Close()

	fmt.Println("Applying schema...")
	if err := schema.Apply(ctx, pool.Pool); err != nil {
		fail("migrate", err)
	}
	fmt.Println("✓ Schema is up to date")
}

func createTenant(ctx context.Context) {
	var in tenant.CreateTenantInput
	var tier string

	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--email":
			if i+1 < len(os.Args) {
				in.Email = os.Args[i+1]
				i++
			}
		case "--company":
			if i+1 < len(os.Args) {
				in.CompanyName = os.Args[i+1]
				i++
			}
		case "--tier":
			if i+1 < len(os.Args) {
				tier = os.Args[i+1]
				i++
			}
		}
	}
	if tier != "" {
		in.Tier = tenant.Tier(strings.ToUpper(strings.TrimSpace(tier)))
	}

	if err := in.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Println("Usage: tenant create --email <email> [--company <name>] [--tier FREEMIUM|BASIC|STANDARD|PREMIUM]")
		os.Exit(1)
	}

	cfg := mustConfig()
	pool := mustPool(ctx, cfg)
	defer pool.Close()

	t := &tenant.Tenant{Email: in.Email, CompanyName: in.CompanyName, Tier: in.Tier}
	if err := tenant.NewPostgresRegistry(pool.Pool).Create(ctx, t); err != nil {
		if errors.Is(err, tenant.ErrDuplicateEmail) {
			fmt.Printf("Error: %s is already registered\n", in.Email)
			os.Exit(1)
		}
		fail("create account", err)
	}

	fmt.Printf("✓ Account created\n")
	fmt.Printf("  ID:    %s\n", t.ID)
	fmt.Printf("  Email: %s\n", t.Email)
	fmt.Printf("  Tier:  %s\n", t.Tier)
}

func listTenants(ctx context.Context) {
	cfg := mustConfig()
	pool := mustPool(ctx, cfg)
	defer pool.Close()

	tenants, err := tenant.NewPostgresRegistry(pool.Pool).ListAll(ctx)
	if err != nil {
		fail("list accounts", err)
	}

	if len(tenants) == 0 {
		fmt.Println("No accounts found")
		return
	}

	fmt.Printf("%-36s %-30s %-30s %-10s\n", "TENANT_ID", "EMAIL", "COMPANY", "TIER")
	fmt.Println(strings.Repeat("-", 110))

	for _, t := range tenants {
		fmt.Printf("%-36s %-30s %-30s %-10s\n",
			t.ID,
			truncate(t.Email, 30),
			truncate(t.CompanyName, 30),
			t.Tier,
		)
	}
}

func setTier(ctx context.Context) {
	if len(os.Args) < 4 {
		fmt.Println("Usage: tenant set-tier <tenant-id> <tier>")
		os.Exit(1)
	}
	tenantID := os.Args[2]
	tier, ok := tenant.ParseTier(os.Args[3])
	if !ok {
		fmt.Printf("Error: unknown tier %q\n", os.Args[3])
		os.Exit(1)
	}

	cfg := mustConfig()
	pool := mustPool(ctx, cfg)
	defer pool.Close()

	if err := tenant.NewPostgresRegistry(pool.Pool).UpdateTier(ctx, tenantID, tier); err != nil {
		fail("update tier", err)
	}
	fmt.Printf("✓ Account '%s' moved to %s\n", tenantID, tier)
}

func issueToken(ctx context.Context) {
	if len(os.Args) < 3 {
		fmt.Println("Usage: tenant token <tenant-id>")
		os.Exit(1)
	}
	tenantID := os.Args[2]

	cfg := mustConfig()
	pool := mustPool(ctx, cfg)
	defer pool.Close()

	t, err := tenant.NewPostgresRegistry(pool.Pool).GetByID(ctx, tenantID)
	if err != nil {
		fail("load account", err)
	}

	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.Secret)
	jwtConfig.Issuer = cfg.Auth.Issuer
	jwtConfig.AccessTokenTTL = cfg.Auth.AccessTokenTTL

	token, expiresAt, err := auth.NewJWTService(jwtConfig).GenerateAccessToken(t.ID, t.Email)
	if err != nil {
		fail("issue token", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
}

func fail(action string, err error) {
	fmt.Printf("Error: %s: %v\n", action, err)
	os.Exit(1)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
