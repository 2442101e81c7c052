// Package repository provides the PostgreSQL persistence backend for
// the identity collection. The store's write-through protocol is a
// whole-collection replace, so Save rewrites the table in a single
// transaction, keyed by position to preserve insertion order.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nexuskeeper/nexus/internal/models"
)

// opTimeout bounds the implicit context used by the Persister-facing
// Load and Save entry points.
const opTimeout = 10 * time.Second

// PostgresIdentityRepository persists the identity collection in a
// PostgreSQL table. Each identity is stored as its JSON payload, with
// id, name, and tags broken out for external querying.
type PostgresIdentityRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresIdentityRepository creates a repository using the provided
// *sql.DB. db must be a valid connection to a PostgreSQL instance.
func NewPostgresIdentityRepository(db *sql.DB) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{DB: db}
}

// Load implements the store's Persister interface with a default
// timeout context.
func (r *PostgresIdentityRepository) Load() ([]models.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.LoadContext(ctx)
}

// Save implements the store's Persister interface with a default
// timeout context.
func (r *PostgresIdentityRepository) Save(ids []models.Identity) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.SaveContext(ctx, ids)
}

// LoadContext fetches the whole collection ordered by position.
func (r *PostgresIdentityRepository) LoadContext(ctx context.Context) ([]models.Identity, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT payload FROM identities ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	defer rows.Close()

	ids := []models.Identity{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var ident models.Identity
		if err := json.Unmarshal(payload, &ident); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		ids = append(ids, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	return ids, nil
}

// SaveContext replaces the stored collection wholesale within a
// transaction, so readers never observe a half-written collection.
func (r *PostgresIdentityRepository) SaveContext(ctx context.Context, ids []models.Identity) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM identities`); err != nil {
		return fmt.Errorf("clear identities: %w", err)
	}

	for pos, ident := range ids {
		payload, err := json.Marshal(ident)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO identities (position, id, name, tags, payload)
			VALUES ($1, $2, $3, $4, $5)
		`, pos, ident.ID, ident.Name, pq.Array(ident.Tags), payload)
		if err != nil {
			return fmt.Errorf("insert identity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
