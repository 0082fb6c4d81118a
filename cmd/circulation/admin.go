package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	cirnats "github.com/Strob0t/circulation/internal/adapter/nats"
	"github.com/Strob0t/circulation/internal/adapter/postgres"
	"github.com/Strob0t/circulation/internal/config"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/middleware"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
)

// runAdmin dispatches admin subcommands (migrate, rollback, version, import-policies).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	case "version":
		return runAdminVersion(args[1:])
	case "import-policies":
		return runAdminImportPolicies(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: circulation admin <command> [options]

Commands:
  migrate           Apply all pending database migrations
  rollback          Roll back the most recent migrations
  version           Print the current migration version
  import-policies   Replace a tenant's loan/request policies and circulation rules
  help              Show this help message

Examples:
  circulation admin migrate
  circulation admin rollback --steps 2
  circulation admin import-policies --dir ./policies --tenant diku
  circulation admin import-policies --file rules.yaml
`)
}

func adminConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := adminConfig()
	if err != nil {
		return err
	}
	if err := postgres.RunMigrations(context.Background(), cfg.Postgres.DSN); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}
	cfg, err := adminConfig()
	if err != nil {
		return err
	}
	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	fmt.Printf("rolled back %d migration(s)\n", *steps)
	return nil
}

func runAdminVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := adminConfig()
	if err != nil {
		return err
	}
	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runAdminImportPolicies(args []string) error {
	fs := flag.NewFlagSet("import-policies", flag.ContinueOnError)
	dir := fs.String("dir", "", "directory of policy YAML files")
	file := fs.String("file", "", "single policy YAML file")
	tenant := fs.String("tenant", middleware.DefaultTenantID, "tenant whose policies are replaced")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*dir == "") == (*file == "") {
		return fmt.Errorf("exactly one of --dir or --file is required")
	}

	var (
		doc *policy.Document
		err error
	)
	if *dir != "" {
		doc, err = policy.LoadFromDirectory(*dir)
	} else {
		doc, err = policy.LoadFromFile(*file)
	}
	if err != nil {
		return err
	}

	cfg, err := adminConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	var q messagequeue.Queue
	if nq, err := cirnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream); err != nil {
		slog.Warn("nats unavailable, running instances pick up the import when their policy cache expires", "error", err)
	} else {
		defer nq.Close()
		q = nq
	}

	rev, err := importPolicies(ctx, postgres.NewStore(pool), q, *tenant, doc)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TENANT\tREVISION\tLOAN POLICIES\tREQUEST POLICIES\tRULES\n")
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", *tenant, rev, len(doc.LoanPolicies), len(doc.RequestPolicies), len(doc.Rules.Rules))
	return tw.Flush()
}
