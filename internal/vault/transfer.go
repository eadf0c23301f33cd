package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/models"
)

// ImportMode decides how imported records combine with the vault.
type ImportMode int

const (
	// ImportReplace discards the current collection.
	ImportReplace ImportMode = iota
	// ImportMerge upserts by id: matching ids are overwritten, the rest appended.
	ImportMerge
)

// Export renders the decrypted collection as an indented JSON array. The
// output is plaintext; protecting it is the caller's job.
func (s *Store) Export(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedHealing(ctx); err != nil {
		return "", err
	}

	out, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	return string(out), nil
}

// importedRecord accepts the export format plus the older "password" field
// name. Timestamps are strings so bad values can fall back to now instead of
// failing the whole document.
type importedRecord struct {
	ID        string            `json:"id"`
	Kind      models.RecordKind `json:"kind"`
	Title     string            `json:"title"`
	Username  string            `json:"username"`
	Secret    *string           `json:"secret"`
	Password  *string           `json:"password"`
	Website   string            `json:"website"`
	Notes     string            `json:"notes"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt"`
}

// Import parses a backup document and stores it according to mode. The
// document must be a JSON array of objects; anything else fails with
// common.ErrImport and leaves the vault untouched. Missing ids and timestamps
// are generated. It returns the number of imported records.
func (s *Store) Import(ctx context.Context, data string, mode ImportMode) (int, error) {
	incoming, err := s.parseImport(data)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedHealing(ctx); err != nil {
		return 0, err
	}

	var next []models.Record
	switch mode {
	case ImportMerge:
		next = cloneRecords(s.records)
		pos := make(map[string]int, len(next))
		for i := range next {
			pos[next[i].ID] = i
		}
		for _, r := range incoming {
			if i, ok := pos[r.ID]; ok {
				next[i] = r
				continue
			}
			pos[r.ID] = len(next)
			next = append(next, r)
		}
	default:
		next = incoming
	}

	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "records imported", "count", len(incoming), "merge", mode == ImportMerge)
	return len(incoming), nil
}

func (s *Store) parseImport(data string) ([]models.Record, error) {
	trimmed := bytes.TrimSpace([]byte(data))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("top level must be an array: %w", common.ErrImport)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("parse document: %w: %w", common.ErrImport, err)
	}

	now := s.now().UTC()
	seen := make(map[string]struct{}, len(items))
	out := make([]models.Record, 0, len(items))

	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, fmt.Errorf("entry %d is not an object: %w", i, common.ErrImport)
		}

		var in importedRecord
		if err := json.Unmarshal(item, &in); err != nil {
			return nil, fmt.Errorf("entry %d: %w: %w", i, common.ErrImport, err)
		}

		rec := models.Record{
			ID:       strings.TrimSpace(in.ID),
			Kind:     in.Kind,
			Title:    in.Title,
			Username: in.Username,
			Website:  in.Website,
			Notes:    in.Notes,
		}
		switch {
		case in.Secret != nil:
			rec.Secret = *in.Secret
		case in.Password != nil:
			rec.Secret = *in.Password
		}
		if err := rec.Normalize(); err != nil {
			return nil, fmt.Errorf("entry %d: %w: %w", i, common.ErrImport, err)
		}

		if _, dup := seen[rec.ID]; rec.ID == "" || dup {
			rec.ID = s.newID()
		}
		seen[rec.ID] = struct{}{}

		rec.CreatedAt = parseTime(in.CreatedAt, now)
		rec.UpdatedAt = parseTime(in.UpdatedAt, now)
		if rec.UpdatedAt.Before(rec.CreatedAt) {
			rec.UpdatedAt = rec.CreatedAt
		}

		out = append(out, rec)
	}
	return out, nil
}

func parseTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
