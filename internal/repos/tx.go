package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"storefront/internal/domain"
)

// Store owns the handle that transactions are started from.
type Store struct{ DB *sqlx.DB }

func NewStore(db *sqlx.DB) *Store { return &Store{DB: db} }

// InTx runs fn inside one transaction. Anything fn returns rolls the
// transaction back; driver errors come back translated by MapErr.
func (s *Store) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return MapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return MapErr(err)
	}
	return MapErr(tx.Commit())
}

// MapErr turns sql.ErrNoRows into domain.ErrNotFound and busy, locked and
// uniqueness failures into domain.ErrConcurrencyConflict.
func MapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%v: %w", err, domain.ErrNotFound)
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch code := se.Code(); {
	case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("store busy: %v: %w", err, domain.ErrConcurrencyConflict)
	case isUnique(se):
		return fmt.Errorf("duplicate row: %v: %w", err, domain.ErrConcurrencyConflict)
	}
	return err
}

func isUnique(se *sqlite.Error) bool {
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && isUnique(se)
}

// Scope selects which lifecycle states a query sees.
type Scope int

const (
	LiveOnly Scope = iota
	WithDeleted
)

// where returns the lifecycle predicate for the given table alias.
func (s Scope) where(alias string) string {
	if s == WithDeleted {
		return "1=1"
	}
	if alias != "" {
		alias += "."
	}
	return alias + "lifecycle = '" + string(domain.LifecycleActive) + "'"
}

func scopeOf(includeDeleted bool) Scope {
	if includeDeleted {
		return WithDeleted
	}
	return LiveOnly
}

// notFound wraps a lookup miss with what was looked up.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf("%s %q", what, id)
	}
	return err
}
