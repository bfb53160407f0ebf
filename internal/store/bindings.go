package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
)

// PutBinding records a new binding.
// Uses ON CONFLICT(key) DO NOTHING for idempotency - writing the same key
// twice keeps the first record.
func (s *Store) PutBinding(ctx context.Context, rec ir.BindingRecord) error {
	if rec.Key == "" {
		return fmt.Errorf("put binding: key is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bindings
		(key, remote_net, environment, value_type, context, expr_key, created_seq, released_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`,
		rec.Key,
		rec.RemoteNet,
		rec.Environment,
		rec.ValueType,
		rec.Context,
		rec.ExprKey,
		rec.CreatedSeq,
		rec.ReleasedSeq,
	)
	if err != nil {
		return fmt.Errorf("put binding: %w", err)
	}
	return nil
}

// ReleaseBinding marks the binding released at seq. Releasing an already
// released binding keeps the first release seq. Returns ErrNotFound for an
// unknown key.
func (s *Store) ReleaseBinding(ctx context.Context, key string, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bindings SET released_seq = ?
		WHERE key = ? AND released_seq = 0
	`, seq, key)
	if err != nil {
		return fmt.Errorf("release binding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release binding: %w", err)
	}
	if n == 0 {
		// released earlier, or absent
		if _, err := s.Binding(ctx, key); err != nil {
			return fmt.Errorf("release binding %q: %w", key, err)
		}
	}
	return nil
}

// Binding returns the record stored under key.
func (s *Store) Binding(ctx context.Context, key string) (ir.BindingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, remote_net, environment, value_type, context, expr_key, created_seq, released_seq
		FROM bindings
		WHERE key = ?
	`, key)
	rec, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.BindingRecord{}, ErrNotFound
	}
	return rec, err
}

// Bindings lists records in creation order. With activeOnly, released
// bindings are skipped.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Bindings(ctx context.Context, activeOnly bool) ([]ir.BindingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, remote_net, environment, value_type, context, expr_key, created_seq, released_seq
		FROM bindings
		WHERE (? = 0 OR released_seq = 0)
		ORDER BY created_seq ASC, key COLLATE BINARY ASC
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	recs := []ir.BindingRecord{}
	for rows.Next() {
		rec, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}
	return recs, nil
}

// BindingsByRemoteNet lists the records of values published by one run.
func (s *Store) BindingsByRemoteNet(ctx context.Context, remoteNet string) ([]ir.BindingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, remote_net, environment, value_type, context, expr_key, created_seq, released_seq
		FROM bindings
		WHERE remote_net = ?
		ORDER BY created_seq ASC, key COLLATE BINARY ASC
	`, remoteNet)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	recs := []ir.BindingRecord{}
	for rows.Next() {
		rec, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}
	return recs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(row scanner) (ir.BindingRecord, error) {
	var rec ir.BindingRecord
	err := row.Scan(
		&rec.Key,
		&rec.RemoteNet,
		&rec.Environment,
		&rec.ValueType,
		&rec.Context,
		&rec.ExprKey,
		&rec.CreatedSeq,
		&rec.ReleasedSeq,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan binding: %w", err)
	}
	return rec, nil
}
