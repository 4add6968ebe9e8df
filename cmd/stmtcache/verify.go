package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-statement-cache/internal/logging"
	"github.com/goliatone/go-statement-cache/pkg/di"
)

// verifyError reports how many definitions failed to compile.
type verifyError struct {
	failed int
	total  int
}

func (e *verifyError) Error() string {
	return fmt.Sprintf("%d of %d statements failed to compile", e.failed, e.total)
}

type verifyOptions struct {
	config  string
	driver  string
	dsn     string
	schema  string
	verbose bool
}

func newVerifyCmd() *cobra.Command {
	var opts verifyOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compile every catalog definition on one connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", "stmtcache.yaml", "Path to the statement cache configuration")
	cmd.Flags().StringVar(&opts.driver, "driver", "sqlite3", "Database driver: sqlite3, postgres or pgx")
	cmd.Flags().StringVar(&opts.dsn, "dsn", ":memory:", "Data source name or pgx connection string")
	cmd.Flags().StringVar(&opts.schema, "schema", "", "SQL file executed before verification (sqlite3 and postgres only)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

// prepareFunc compiles the definition under key and releases it.
type prepareFunc func(ctx context.Context, key string) error

func runVerify(cmd *cobra.Command, opts verifyOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := di.LoadConfig(opts.config)
	if err != nil {
		return err
	}
	if len(cfg.Definitions) == 0 {
		return fmt.Errorf("%s: no definitions to verify", opts.config)
	}

	logger := logging.New(logging.Options{Verbose: opts.verbose, Writer: cmd.ErrOrStderr()})
	container, err := di.NewContainer(cfg, di.WithLogger(logger))
	if err != nil {
		return err
	}

	prepare, closeDB, err := openConn(ctx, container, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = container.Close(context.WithoutCancel(ctx))
		closeDB()
	}()

	keys := make([]string, 0, len(cfg.Definitions))
	for _, def := range cfg.Definitions {
		keys = append(keys, def.Key)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	failed := 0
	for _, key := range keys {
		if err := prepare(ctx, key); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", key, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", key)
	}

	if failed > 0 {
		return &verifyError{failed: failed, total: len(keys)}
	}
	return nil
}

func openConn(ctx context.Context, container *di.Container, opts verifyOptions) (prepareFunc, func(), error) {
	switch opts.driver {
	case "pgx":
		if opts.schema != "" {
			return nil, nil, fmt.Errorf("--schema is not supported with the pgx driver")
		}
		_, conn, err := container.OpenPgx(ctx, opts.dsn)
		if err != nil {
			return nil, nil, err
		}
		return func(ctx context.Context, key string) error {
			h, err := conn.PrepareNamed(ctx, key)
			if err != nil {
				return err
			}
			return h.Release(ctx)
		}, func() {}, nil

	case "sqlite3", "postgres":
		db, err := sql.Open(opts.driver, opts.dsn)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(1)
		if opts.schema != "" {
			if err := applySchema(ctx, db, opts.schema); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		_, conn, err := container.OpenSQL(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return func(ctx context.Context, key string) error {
			h, err := conn.PrepareNamed(ctx, key)
			if err != nil {
				return err
			}
			return h.Release(ctx)
		}, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", opts.driver)
	}
}

func applySchema(ctx context.Context, db *sql.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply schema %s: %w", path, err)
	}
	return nil
}
