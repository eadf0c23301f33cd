package securestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already migrated database. Open is the usual way
// to obtain a store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageUnavailable, err)
}

func get(ctx context.Context, db dbx.DBTX, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM secure_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(fmt.Sprintf("get %s", key), err)
	}
	return value, nil
}

func set(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO secure_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return unavailable(fmt.Sprintf("set %s", key), err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, s.db, key)
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	return set(ctx, s.db, key, value)
}

// SetMany writes all values in one transaction: either every key is updated
// or none is.
func (s *SQLiteStore) SetMany(ctx context.Context, values map[string][]byte) error {
	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		for k, v := range values {
			if err := set(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, common.ErrStorageUnavailable) {
		return unavailable("set many", err)
	}
	return err
}

// Delete removes the given keys in one transaction. Missing keys are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM secure_store WHERE key = ?`, k); err != nil {
				return unavailable(fmt.Sprintf("delete %s", k), err)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, common.ErrStorageUnavailable) {
		return unavailable("delete", err)
	}
	return err
}

// Clear deletes every key in a single statement.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secure_store`); err != nil {
		return unavailable("clear", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
