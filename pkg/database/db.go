package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries runs the roster queries (athletes, athlete_infos, clubs) against Postgres
type Queries struct {
	db DBTX
}

// ConstraintError reports a unique key collision on insert
type ConstraintError struct {
	Table string
	Key   string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("duplicate key %q in %s", e.Key, e.Table)
}

func uniqueViolation(err error, table, key string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &ConstraintError{Table: table, Key: key}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
