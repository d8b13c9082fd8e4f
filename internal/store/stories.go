package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/storysync/internal/story"
)

// Put inserts or overwrites a cached story by id.
// Errors from the underlying transaction are always returned.
func (s *Store) Put(ctx context.Context, r story.Record) error {
	if err := s.ready("put story"); err != nil {
		return err
	}
	if r.ID == "" {
		return fmt.Errorf("put story: id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stories (id, name, description, photo_url, lat, lon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			photo_url = excluded.photo_url,
			lat = excluded.lat,
			lon = excluded.lon,
			created_at = excluded.created_at
	`,
		r.ID,
		r.Name,
		r.Description,
		r.PhotoURL,
		nullFloat(r.Lat),
		nullFloat(r.Lon),
		formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put story: %w", err)
	}
	return nil
}

// PutAll upserts a batch of stories in one transaction.
// Used when a page of stories is fetched from the remote API.
func (s *Store) PutAll(ctx context.Context, records []story.Record) error {
	if err := s.ready("put stories"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put stories: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stories (id, name, description, photo_url, lat, lon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			photo_url = excluded.photo_url,
			lat = excluded.lat,
			lon = excluded.lon,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("put stories: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("put stories: id is required")
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Name, r.Description, r.PhotoURL,
			nullFloat(r.Lat), nullFloat(r.Lon), formatTime(r.CreatedAt),
		); err != nil {
			return fmt.Errorf("put stories: %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put stories: commit: %w", err)
	}
	return nil
}

// Get retrieves a cached story by id.
// Returns found=false (and no error) if the story is not cached.
func (s *Store) Get(ctx context.Context, id string) (story.Record, bool, error) {
	if err := s.ready("get story"); err != nil {
		return story.Record{}, false, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, photo_url, lat, lon, created_at
		FROM stories
		WHERE id = ?
	`, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return story.Record{}, false, nil
	}
	if err != nil {
		return story.Record{}, false, fmt.Errorf("get story: %w", err)
	}
	return r, true, nil
}

// GetAll returns every cached story ordered by id.
// Returns an empty slice (not nil) if nothing is cached.
func (s *Store) GetAll(ctx context.Context) ([]story.Record, error) {
	if err := s.ready("get stories"); err != nil {
		return nil, err
	}

	return s.queryRecords(ctx, "get stories", `
		SELECT id, name, description, photo_url, lat, lon, created_at
		FROM stories
		ORDER BY id COLLATE BINARY ASC
	`)
}

// Delete removes a cached story. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ready("delete story"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]story.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	records := []story.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return records, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (story.Record, error) {
	var (
		r         story.Record
		lat, lon  sql.NullFloat64
		createdAt string
	)
	if err := sc.Scan(&r.ID, &r.Name, &r.Description, &r.PhotoURL, &lat, &lon, &createdAt); err != nil {
		return story.Record{}, err
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return story.Record{}, err
	}
	r.CreatedAt = t
	r.Lat = floatPtr(lat)
	r.Lon = floatPtr(lon)
	return r, nil
}
