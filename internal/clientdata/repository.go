// Package clientdata provides the durable record store (L2) for resolved
// financial data. Each (category, natural key) has at most one row; rows
// carry the time they were written and are never removed by TTL.
package clientdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/findata/internal/database"
	"github.com/aristath/findata/internal/domain"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Repository implements domain.PersistentRepository on SQLite.
type Repository struct {
	db   *sql.DB
	gate *database.Gate
	now  func() time.Time
	log  zerolog.Logger
}

// NewRepository creates a repository whose operations are admitted through
// gate and fail fast when it is full.
func NewRepository(db *sql.DB, gate *database.Gate, log zerolog.Logger) *Repository {
	return &Repository{
		db:   db,
		gate: gate,
		now:  time.Now,
		log:  log.With().Str("component", "clientdata").Logger(),
	}
}

func unavailable(op string, category domain.Category, err error) error {
	return fmt.Errorf("%w: failed to %s %s record: %w", domain.ErrRepositoryUnavailable, op, category, err)
}

func (r *Repository) acquire(op string, category domain.Category) error {
	if !r.gate.TryAcquire() {
		return unavailable(op, category, database.ErrPoolExhausted)
	}
	return nil
}

// Get returns the stored record regardless of its age, or nil, nil when the
// key is absent.
func (r *Repository) Get(ctx context.Context, category domain.Category, key domain.NaturalKey) (*domain.Record, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	if err := r.acquire("get", category); err != nil {
		return nil, err
	}
	defer r.gate.Release()

	var (
		payload   string
		writtenAt int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT payload, written_at FROM records WHERE category = ? AND natural_key = ?",
		category.String(), key.String(),
	).Scan(&payload, &writtenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get", category, err)
	}

	return &domain.Record{
		Category:  category,
		Key:       key,
		Payload:   json.RawMessage(payload),
		WrittenAt: time.Unix(0, writtenAt),
		Origin:    domain.LayerStore,
	}, nil
}

// Upsert inserts or replaces the row for the record's natural key. The
// conflict clause only replaces when the incoming WrittenAt is not older
// than the stored one, so late writes from retried fetches are dropped
// atomically inside SQLite.
func (r *Repository) Upsert(ctx context.Context, rec domain.Record) error {
	if !rec.Category.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCategory, rec.Category)
	}
	if len(rec.Payload) == 0 {
		return fmt.Errorf("refusing to store empty payload for %s %s", rec.Category, rec.Key)
	}
	if rec.WrittenAt.IsZero() {
		rec.WrittenAt = r.now()
	}
	if err := r.acquire("upsert", rec.Category); err != nil {
		return err
	}
	defer r.gate.Release()

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO records (category, natural_key, payload, written_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category, natural_key) DO UPDATE SET
			payload = excluded.payload,
			written_at = excluded.written_at
		WHERE excluded.written_at >= records.written_at
	`, rec.Category.String(), rec.Key.String(), string(rec.Payload), rec.WrittenAt.UnixNano())
	if err != nil {
		return unavailable("upsert", rec.Category, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		r.log.Debug().
			Str("category", rec.Category.String()).
			Str("key", rec.Key.String()).
			Time("written_at", rec.WrittenAt).
			Msg("Skipped upsert older than stored record")
	}

	return nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, category domain.Category, key domain.NaturalKey) error {
	if err := r.acquire("delete", category); err != nil {
		return err
	}
	defer r.gate.Release()

	_, err := r.db.ExecContext(ctx,
		"DELETE FROM records WHERE category = ? AND natural_key = ?",
		category.String(), key.String(),
	)
	if err != nil {
		return unavailable("delete", category, err)
	}
	return nil
}

// DeleteOlderThan removes rows of a category written before cutoff and
// returns how many were deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, category domain.Category, cutoff time.Time) (int64, error) {
	if err := r.acquire("purge", category); err != nil {
		return 0, err
	}
	defer r.gate.Release()

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM records WHERE category = ? AND written_at < ?",
		category.String(), cutoff.UnixNano(),
	)
	if err != nil {
		return 0, unavailable("purge", category, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", category, err)
	}
	return deleted, nil
}

// DeleteAllOlderThan purges every category. It keeps going after a failure
// and returns the combined error alongside the partial counts.
func (r *Repository) DeleteAllOlderThan(ctx context.Context, cutoff time.Time) (map[domain.Category]int64, error) {
	results := make(map[domain.Category]int64, len(domain.AllCategories))
	var errs *multierror.Error

	for _, category := range domain.AllCategories {
		deleted, err := r.DeleteOlderThan(ctx, category, cutoff)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		results[category] = deleted
	}

	return results, errs.ErrorOrNil()
}

// Count returns the number of stored rows per category.
func (r *Repository) Count(ctx context.Context) (map[domain.Category]int64, error) {
	if err := r.acquire("count", ""); err != nil {
		return nil, err
	}
	defer r.gate.Release()

	rows, err := r.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM records GROUP BY category")
	if err != nil {
		return nil, unavailable("count", "", err)
	}
	defer rows.Close()

	counts := make(map[domain.Category]int64)
	for rows.Next() {
		var (
			category string
			n        int64
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, unavailable("count", "", err)
		}
		counts[domain.Category(category)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("count", "", err)
	}
	return counts, nil
}
