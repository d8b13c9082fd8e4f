package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/storysync/internal/story"
)

// SortField names a story field accepted by Sort.
type SortField string

const (
	SortByCreatedAt   SortField = "createdAt"
	SortByName        SortField = "name"
	SortByDescription SortField = "description"
	SortByID          SortField = "id"
)

// ParseSortField validates a user-supplied sort field.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortByCreatedAt, SortByName, SortByDescription, SortByID:
		return f, nil
	case "":
		return SortByCreatedAt, nil
	}
	return "", fmt.Errorf("unknown sort field %q: must be one of createdAt, name, description, id", s)
}

// Search returns cached stories whose name or description contains query.
//
// Matching is Unicode case-insensitive: both sides are NFC normalized and
// case folded, so "CAFÉ" matches "café". An empty query matches everything.
func (s *Store) Search(ctx context.Context, query string) ([]story.Record, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	needle := fold(query)
	if needle == "" {
		return all, nil
	}

	matches := []story.Record{}
	for _, r := range all {
		if strings.Contains(fold(r.Name), needle) || strings.Contains(fold(r.Description), needle) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// FilterByDate returns cached stories created within [from, to], inclusive.
// A zero from or to leaves that side of the range open.
func (s *Store) FilterByDate(ctx context.Context, from, to time.Time) ([]story.Record, error) {
	if err := s.ready("filter stories"); err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("filter stories: end %s is before start %s",
			to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	query := `
		SELECT id, name, description, photo_url, lat, lon, created_at
		FROM stories
		WHERE 1 = 1`
	var args []any
	if !from.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, formatTime(to))
	}
	query += ` ORDER BY id COLLATE BINARY ASC`

	return s.queryRecords(ctx, "filter stories", query, args...)
}

// FilterRecordsByDate keeps the records created within [from, to] with the
// same bounds rules as FilterByDate. Input order is preserved.
func FilterRecordsByDate(records []story.Record, from, to time.Time) ([]story.Record, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("filter stories: end %s is before start %s",
			to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	out := []story.Record{}
	for _, r := range records {
		if !from.IsZero() && r.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && r.CreatedAt.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Sort returns every cached story ordered by field.
// Ties are broken by id so the order is deterministic.
func (s *Store) Sort(ctx context.Context, field SortField, ascending bool) ([]story.Record, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := SortRecords(all, field, ascending); err != nil {
		return nil, err
	}
	return all, nil
}

// SortRecords orders records in place. Names and descriptions use the
// root-locale collation so accented and mixed-case text sorts naturally.
func SortRecords(records []story.Record, field SortField, ascending bool) error {
	var cmp func(a, b story.Record) int

	switch field {
	case SortByCreatedAt:
		cmp = func(a, b story.Record) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortByName:
		c := collate.New(language.Und, collate.IgnoreCase)
		cmp = func(a, b story.Record) int { return c.CompareString(a.Name, b.Name) }
	case SortByDescription:
		c := collate.New(language.Und, collate.IgnoreCase)
		cmp = func(a, b story.Record) int { return c.CompareString(a.Description, b.Description) }
	case SortByID:
		cmp = func(a, b story.Record) int { return strings.Compare(a.ID, b.ID) }
	default:
		return fmt.Errorf("unknown sort field %q", field)
	}

	sort.SliceStable(records, func(i, j int) bool {
		c := cmp(records[i], records[j])
		if c == 0 {
			return records[i].ID < records[j].ID
		}
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return nil
}

// fold normalizes s for case-insensitive matching.
// Casers are stateful, so a fresh one is used per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
