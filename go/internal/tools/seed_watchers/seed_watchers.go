package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/chainwatch/go/internal/dbconfig"
)

const insertWatcher = `
	INSERT INTO watchers (name) VALUES ($1)
	ON CONFLICT (name) DO NOTHING
`

func main() {
	file := flag.String("file", "go/internal/assets/watchers.txt", "file with one watcher name per line")
	flag.Parse()

	// 1) Collect names from the file and any extra arguments
	names, err := loadNames(*file, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load names: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Println("No watcher names to seed")
		return
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert in one batch and count
	batch := &pgx.Batch{}
	for _, name := range names {
		batch.Queue(insertWatcher, name)
	}
	results := pool.SendBatch(ctx, batch)

	var inserted, skipped, errs int
	for _, name := range names {
		tag, err := results.Exec()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting watcher %q: %v\n", name, err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	if err := results.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close batch: %v\n", err)
		errs++
	}

	// 4) Print summary
	fmt.Printf(
		"Watchers seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		len(names), inserted, skipped, errs,
	)
}

// loadNames reads path (a missing file is fine) plus extra, trimmed and de-duplicated
func loadNames(path string, extra []string) ([]string, error) {
	var names []string
	if path != "" {
		f, err := os.Open(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, err
		default:
			defer f.Close()
			fromFile, err := parseNames(f)
			if err != nil {
				return nil, err
			}
			names = fromFile
		}
	}
	return dedupe(append(names, extra...)), nil
}

// parseNames reads one name per line, skipping blanks and # comments
func parseNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
