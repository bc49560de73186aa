// Package hosted implements the authoritative data source backed by the
// managed Postgres database, plus the repository used by the HTTP handlers.
package hosted

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/model"
)

const backendName = "hosted"

// DB is the subset of *pgxpool.Pool used by this package.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var _ DB = (*pgxpool.Pool)(nil)

// Open creates a connection pool for cfg. It does not contact the server;
// use Ping to verify connectivity.
func Open(ctx context.Context, cfg model.HostedConfig) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, &apperr.AuthError{Backend: backendName, Message: "database URL is not configured"}
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, &apperr.ValidationError{Field: "hosted.database_url", Message: err.Error()}
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, classify("connect", err)
	}
	return pool, nil
}

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables and report views if they do not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return classify("ensure schema", err)
	}
	return nil
}

// Postgres error codes mapped by classify.
const (
	codeInvalidPassword      = "28P01"
	codeInvalidAuthorization = "28000"
	codeInsufficientPrivs    = "42501"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
)

// classify translates a pgx failure into the apperr taxonomy. op names the
// operation for network errors and wrapping.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInvalidPassword, codeInvalidAuthorization, codeInsufficientPrivs:
			return &apperr.AuthError{Backend: backendName, Message: pgErr.Message}
		case codeUniqueViolation:
			return &apperr.ConflictError{Entity: pgErr.TableName, Key: pgErr.ConstraintName}
		case codeForeignKeyViolation, codeCheckViolation:
			return &apperr.ValidationError{Field: pgErr.ConstraintName, Message: pgErr.Message}
		case codeNotNullViolation:
			return &apperr.ValidationError{Field: pgErr.ColumnName, Message: pgErr.Message}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var (
		connErr *pgconn.ConnectError
		netErr  net.Error
	)
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return &apperr.NetworkError{Backend: backendName, Op: op, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}
