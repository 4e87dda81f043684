// Package sqlite provides a SQLite-backed asset store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fantasyrpg/server/apperr"
	"fantasyrpg/server/asset"
	"fantasyrpg/shared/game/types"
	"fantasyrpg/shared/protocol"
)

//go:embed schema.sql
var schemaSQL string

// Store persists character assets in SQLite. Every save is recorded in
// asset_updates under its confirmation id.
type Store struct {
	sqlDB      *sql.DB
	collection string
}

var _ asset.Store = (*Store)(nil)

// Open opens the database at path and applies the schema.
func Open(path, collection string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if collection == "" {
		collection = asset.DefaultCollection
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, collection: collection}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) FindCharacter(ctx context.Context, owner string) (string, bool, error) {
	if owner == "" {
		return "", false, apperr.ErrWalletNotConnected
	}
	var id string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id FROM assets
		 WHERE owner = ? AND collection = ? AND name LIKE ?
		 ORDER BY created_at, id LIMIT 1`,
		owner, s.collection, asset.NamePrefix+"%",
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.CodeLoadError, "Failed to look up character", err)
	}
	return id, true, nil
}

func (s *Store) getRecord(ctx context.Context, assetID string) (asset.Record, error) {
	var r asset.Record
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, owner, name, uri, collection, created_at, updated_at FROM assets WHERE id = ?`,
		assetID,
	).Scan(&r.ID, &r.Owner, &r.Name, &r.URI, &r.Collection, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Record{}, apperr.New(apperr.CodeNotFound, "Character not found")
	}
	if err != nil {
		return asset.Record{}, fmt.Errorf("get asset: %w", err)
	}
	return r, nil
}

func (s *Store) LoadCharacter(ctx context.Context, assetID string) (types.PlayerData, error) {
	r, err := s.getRecord(ctx, assetID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return types.PlayerData{}, err
		}
		return types.PlayerData{}, apperr.Wrap(apperr.CodeLoadError, "Failed to load character", err)
	}
	p, err := r.Player()
	if err != nil {
		return types.PlayerData{}, apperr.Wrap(apperr.CodeLoadError, "Failed to load character", err)
	}
	return p, nil
}

func (s *Store) CreateCharacter(ctx context.Context, initial types.PlayerData) (string, error) {
	if err := asset.ValidateNew(initial); err != nil {
		return "", err
	}
	uri, err := asset.EncodeURI(initial)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to create character", err)
	}
	id := protocol.NewID()
	now := time.Now().UnixMilli()
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO assets (id, owner, name, uri, collection, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, initial.Owner, asset.Name(initial.Class), uri, s.collection, now, now,
	)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to create character", err)
	}
	log.Printf("[asset] created %s for %s (%s)", id, initial.Owner, initial.Class)
	return id, nil
}

func (s *Store) SaveCharacter(ctx context.Context, assetID string, p types.PlayerData) (string, error) {
	uri, err := asset.EncodeURI(p)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, `UPDATE assets SET uri = ?, updated_at = ? WHERE id = ?`, uri, now, assetID)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", apperr.New(apperr.CodeNotFound, "Character not found"))
	}
	txID := protocol.NewID()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO asset_updates (tx_id, asset_id, uri, created_at) VALUES (?, ?, ?, ?)`,
		txID, assetID, uri, now,
	); err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
	}
	if err := tx.Commit(); err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
	}
	return txID, nil
}

func (s *Store) ListCharacters(ctx context.Context) ([]types.PlayerData, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, owner, name, uri, collection, created_at, updated_at
		 FROM assets WHERE collection = ? ORDER BY created_at, id`,
		s.collection,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLoadError, "Failed to list characters", err)
	}
	defer rows.Close()

	var out []types.PlayerData
	for rows.Next() {
		var r asset.Record
		if err := rows.Scan(&r.ID, &r.Owner, &r.Name, &r.URI, &r.Collection, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.CodeLoadError, "Failed to list characters", err)
		}
		p, err := r.Player()
		if err != nil {
			log.Printf("[asset] skipping %s: %v", r.ID, err)
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeLoadError, "Failed to list characters", err)
	}
	return out, nil
}

// Updates returns how many saves were recorded for assetID.
func (s *Store) Updates(ctx context.Context, assetID string) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM asset_updates WHERE asset_id = ?`, assetID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count asset updates: %w", err)
	}
	return n, nil
}
