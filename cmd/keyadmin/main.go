// keyadmin is the out-of-band provisioning tool for API keys: create (the
// raw key is printed once), list, set-perms and revoke. It talks directly to
// the database and is never exposed over the network surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/imagevault-api/internal/domain/apikey"
	"github.com/makkenzo/imagevault-api/internal/service"
	"github.com/makkenzo/imagevault-api/internal/storage/postgres"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	repo := postgres.NewAPIKeyRepository(pool, logger)
	keys := service.NewAPIKeyService(repo, logger)

	switch os.Args[1] {
	case "create":
		runCreate(ctx, keys, os.Args[2:])
	case "list":
		runList(ctx, keys)
	case "set-perms":
		runSetPerms(ctx, keys, os.Args[2:])
	case "revoke":
		runRevoke(ctx, keys, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: keyadmin <command> [flags]

Commands:
  create     -app <name> -perms <read,write,delete,admin>
  list
  set-perms  -id <uuid> -perms <read,write,delete,admin>
  revoke     -id <uuid>`)
}

func runCreate(ctx context.Context, keys *service.APIKeyService, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	app := fs.String("app", "", "App (tenant) name the key belongs to")
	perms := fs.String("perms", "read", "Comma-separated permissions")
	_ = fs.Parse(args)

	if *app == "" {
		log.Fatal("-app is required")
	}

	mask, err := apikey.ParsePermissions(strings.Split(*perms, ","))
	if err != nil {
		log.Fatalf("Invalid permissions: %v", err)
	}

	record, rawKey, err := keys.CreateAPIKey(ctx, *app, mask)
	if err != nil {
		log.Fatalf("Failed to create API key: %v", err)
	}

	fmt.Printf("Generated API Key (SAVE THIS securely, it is shown only once!):\n%s\n\n", rawKey)
	fmt.Printf("ID:          %s\n", record.ID)
	fmt.Printf("App:         %s\n", record.AppID)
	fmt.Printf("Permissions: %s\n", record.Permissions)
}

func runList(ctx context.Context, keys *service.APIKeyService) {
	records, err := keys.ListAPIKeys(ctx)
	if err != nil {
		log.Fatalf("Failed to list API keys: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAPP\tPREFIX\tPERMISSIONS\tACTIVE\tCREATED\tLAST USED")
	for _, record := range records {
		lastUsed := "-"
		if record.LastUsedAt != nil {
			lastUsed = record.LastUsedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			record.ID,
			record.AppID,
			record.Prefix,
			record.Permissions,
			record.IsActive,
			record.CreatedAt.Format("2006-01-02 15:04:05"),
			lastUsed,
		)
	}
	w.Flush()
}

func runSetPerms(ctx context.Context, keys *service.APIKeyService, args []string) {
	fs := flag.NewFlagSet("set-perms", flag.ExitOnError)
	idStr := fs.String("id", "", "API key ID")
	perms := fs.String("perms", "", "Comma-separated permissions")
	_ = fs.Parse(args)

	id, err := uuid.Parse(*idStr)
	if err != nil {
		log.Fatalf("Invalid -id: %v", err)
	}

	mask, err := apikey.ParsePermissions(strings.Split(*perms, ","))
	if err != nil {
		log.Fatalf("Invalid permissions: %v", err)
	}

	if err := keys.UpdatePermissions(ctx, id, mask); err != nil {
		log.Fatalf("Failed to update permissions: %v", err)
	}
	fmt.Printf("Permissions for %s set to %s\n", id, mask)
}

func runRevoke(ctx context.Context, keys *service.APIKeyService, args []string) {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	idStr := fs.String("id", "", "API key ID")
	_ = fs.Parse(args)

	id, err := uuid.Parse(*idStr)
	if err != nil {
		log.Fatalf("Invalid -id: %v", err)
	}

	if err := keys.RevokeAPIKey(ctx, id); err != nil {
		log.Fatalf("Failed to revoke API key: %v", err)
	}
	fmt.Printf("API key %s revoked\n", id)
}
