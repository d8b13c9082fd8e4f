package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/storysync/internal/story"
)

// EnqueuePending stores a submission in the offline queue with synced=false.
//
// The local id comes from the store's IDGenerator and CreatedAt from its
// Clock; Seq is the insertion order assigned by SQLite. The returned entry
// reflects exactly what was written.
func (s *Store) EnqueuePending(ctx context.Context, sub story.Submission) (story.Pending, error) {
	if err := s.ready("enqueue pending"); err != nil {
		return story.Pending{}, err
	}

	p := story.Pending{
		LocalID:     s.ids.Generate(),
		Description: sub.Description,
		Photo:       sub.Photo,
		Lat:         sub.Lat,
		Lon:         sub.Lon,
		CreatedAt:   s.clock.Now().UTC(),
		Synced:      false,
	}

	var photoName, photoType sql.NullString
	var photo []byte
	if p.Photo != nil {
		photoName = sql.NullString{String: p.Photo.Name, Valid: true}
		photoType = sql.NullString{String: p.Photo.ContentType, Valid: true}
		photo = p.Photo.Data
		if photo == nil {
			photo = []byte{}
		}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_stories
		(local_id, description, photo_name, photo_type, photo, lat, lon, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`,
		p.LocalID,
		p.Description,
		photoName,
		photoType,
		photo,
		nullFloat(p.Lat),
		nullFloat(p.Lon),
		formatTime(p.CreatedAt),
	)
	if err != nil {
		return story.Pending{}, fmt.Errorf("enqueue pending: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return story.Pending{}, fmt.Errorf("enqueue pending: last insert id: %w", err)
	}
	p.Seq = seq

	s.logger.Debug("pending story enqueued",
		zap.String("local_id", p.LocalID),
		zap.Int64("seq", p.Seq),
	)
	return p, nil
}

// ListUnsynced returns every pending entry with synced=false in insertion
// order (seq ASC). Returns an empty slice (not nil) if the queue is empty.
func (s *Store) ListUnsynced(ctx context.Context) ([]story.Pending, error) {
	if err := s.ready("list unsynced"); err != nil {
		return nil, err
	}

	return s.queryPending(ctx, "list unsynced", `
		SELECT seq, local_id, description, photo_name, photo_type, photo, lat, lon, created_at, synced
		FROM pending_stories
		WHERE synced = 0
		ORDER BY seq ASC
	`)
}

// ListPending returns every pending entry, synced or not, in insertion order.
func (s *Store) ListPending(ctx context.Context) ([]story.Pending, error) {
	if err := s.ready("list pending"); err != nil {
		return nil, err
	}

	return s.queryPending(ctx, "list pending", `
		SELECT seq, local_id, description, photo_name, photo_type, photo, lat, lon, created_at, synced
		FROM pending_stories
		ORDER BY seq ASC
	`)
}

// GetPending retrieves a pending entry by local id.
// Returns found=false (and no error) if it does not exist.
func (s *Store) GetPending(ctx context.Context, localID string) (story.Pending, bool, error) {
	if err := s.ready("get pending"); err != nil {
		return story.Pending{}, false, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT seq, local_id, description, photo_name, photo_type, photo, lat, lon, created_at, synced
		FROM pending_stories
		WHERE local_id = ?
	`, localID)

	p, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return story.Pending{}, false, nil
	}
	if err != nil {
		return story.Pending{}, false, fmt.Errorf("get pending: %w", err)
	}
	return p, true, nil
}

// MarkSynced flags a pending entry as confirmed by the remote API.
//
// The read and the write happen in one transaction. Returns found=false
// (and no error) if no entry has this local id. Marking an entry that is
// already synced changes nothing.
func (s *Store) MarkSynced(ctx context.Context, localID string) (bool, error) {
	if err := s.ready("mark synced"); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("mark synced: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var synced bool
	err = tx.QueryRowContext(ctx, `
		SELECT synced FROM pending_stories WHERE local_id = ?
	`, localID).Scan(&synced)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark synced: select: %w", err)
	}

	if !synced {
		if _, err := tx.ExecContext(ctx, `
			UPDATE pending_stories SET synced = 1 WHERE local_id = ? AND synced = 0
		`, localID); err != nil {
			return false, fmt.Errorf("mark synced: update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("mark synced: commit: %w", err)
	}
	return true, nil
}

// DeletePending removes a pending entry on explicit user request.
// Deleting a missing id is not an error.
func (s *Store) DeletePending(ctx context.Context, localID string) error {
	if err := s.ready("delete pending"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_stories WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete pending: %w", err)
	}
	return nil
}

// PruneSynced deletes every confirmed entry and returns how many were removed.
func (s *Store) PruneSynced(ctx context.Context) (int64, error) {
	if err := s.ready("prune synced"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM pending_stories WHERE synced = 1`)
	if err != nil {
		return 0, fmt.Errorf("prune synced: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune synced: rows affected: %w", err)
	}
	return n, nil
}

// CountUnsynced returns the number of entries still waiting to sync.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	if err := s.ready("count unsynced"); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pending_stories WHERE synced = 0
	`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unsynced: %w", err)
	}
	return n, nil
}

func (s *Store) queryPending(ctx context.Context, op, query string, args ...any) ([]story.Pending, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	entries := []story.Pending{}
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return entries, nil
}

func scanPending(sc scanner) (story.Pending, error) {
	var (
		p                    story.Pending
		photoName, photoType sql.NullString
		photo                []byte
		lat, lon             sql.NullFloat64
		createdAt            string
	)
	if err := sc.Scan(
		&p.Seq, &p.LocalID, &p.Description,
		&photoName, &photoType, &photo,
		&lat, &lon, &createdAt, &p.Synced,
	); err != nil {
		return story.Pending{}, err
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return story.Pending{}, err
	}
	p.CreatedAt = t
	p.Lat = floatPtr(lat)
	p.Lon = floatPtr(lon)

	if photoName.Valid {
		if photo == nil {
			photo = []byte{}
		}
		p.Photo = &story.Photo{
			Name:        photoName.String,
			ContentType: photoType.String,
			Data:        photo,
		}
	}
	return p, nil
}
