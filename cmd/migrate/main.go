package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/civicconnect/internal/pkg/config"
	"github.com/samirrijal/civicconnect/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("civicconnect-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		run(ctx, pool, ".up.sql", false)
	case "down":
		run(ctx, pool, ".down.sql", true)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func migrationFiles(suffix string, reverse bool) ([]string, error) {
	entries, err := fs.Glob(migrations.FS, "*"+suffix)
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(entries)))
	}
	return entries, nil
}

func run(ctx context.Context, pool *pgxpool.Pool, suffix string, reverse bool) {
	files, err := migrationFiles(suffix, reverse)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}

	for _, f := range files {
		data, err := migrations.FS.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", strings.TrimSuffix(f, suffix))
	}

	log.Println("all migrations applied")
}
