// Package memo implements ULID-identified memo storage: one JSON file per
// memo, a parallel but simpler design to pkg/issues since memos carry no
// numbering or completion state.
package memo

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

// Memo is a titled, free-form note.
type Memo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is file-system-backed memo storage: one {id}.json file per memo
// under Dir.
type Store struct {
	Dir string

	createMu sync.Mutex
}

// New constructs a Store rooted at dir, creating it if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, swerr.Wrapf(swerr.KindIO, err, "creating memos directory %s", dir)
	}
	return &Store{Dir: dir}, nil
}

// CreateMemo assigns a fresh ULID and writes {id}.json via a create-exclusive
// open; a single creation mutex guards the open so concurrent calls never
// race on the same identifier.
func (s *Store) CreateMemo(title, content string) (Memo, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	now := time.Now().UTC()
	memo := Memo{ID: id, Title: title, Content: content, CreatedAt: now, UpdatedAt: now}

	if err := s.writeExclusive(memo); err != nil {
		return Memo{}, err
	}
	return memo, nil
}

func (s *Store) writeExclusive(memo Memo) error {
	path := s.path(memo.ID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return swerr.Newf(swerr.KindStorage, "memo already exists: %s", memo.ID)
		}
		return swerr.Wrapf(swerr.KindIO, err, "creating memo file %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(memo); err != nil {
		return swerr.Wrapf(swerr.KindSerialization, err, "encoding memo %s", memo.ID)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

// GetMemo reads a single memo by ID.
func (s *Store) GetMemo(id string) (Memo, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Memo{}, swerr.Newf(swerr.KindOther, "memo not found: %s", id)
		}
		return Memo{}, swerr.Wrapf(swerr.KindIO, err, "reading memo %s", id)
	}
	var memo Memo
	if err := json.Unmarshal(data, &memo); err != nil {
		return Memo{}, swerr.Wrapf(swerr.KindSerialization, err, "decoding memo %s", id)
	}
	return memo, nil
}

// UpdateMemo rewrites content and bumps UpdatedAt.
func (s *Store) UpdateMemo(id, content string) (Memo, error) {
	memo, err := s.GetMemo(id)
	if err != nil {
		return Memo{}, err
	}
	memo.Content = content
	memo.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(memo, "", "  ")
	if err != nil {
		return Memo{}, swerr.Wrapf(swerr.KindSerialization, err, "encoding memo %s", id)
	}
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return Memo{}, swerr.Wrapf(swerr.KindIO, err, "updating memo %s", id)
	}
	return memo, nil
}

// DeleteMemo removes a memo's file.
func (s *Store) DeleteMemo(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return swerr.Newf(swerr.KindOther, "memo not found: %s", id)
		}
		return swerr.Wrapf(swerr.KindIO, err, "deleting memo %s", id)
	}
	return nil
}

// ListMemos returns every memo in Dir.
func (s *Store) ListMemos() ([]Memo, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, swerr.Wrapf(swerr.KindIO, err, "listing memos directory %s", s.Dir)
	}
	var out []Memo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		memo, err := s.GetMemo(id)
		if err != nil {
			continue
		}
		out = append(out, memo)
	}
	return out, nil
}

// SearchMemos returns every memo whose title or content contains query as a
// case-insensitive substring. Results are unranked; the caller ranks them.
func (s *Store) SearchMemos(query string) ([]Memo, error) {
	all, err := s.ListMemos()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var out []Memo
	for _, memo := range all {
		if strings.Contains(strings.ToLower(memo.Title), needle) || strings.Contains(strings.ToLower(memo.Content), needle) {
			out = append(out, memo)
		}
	}
	return out, nil
}
