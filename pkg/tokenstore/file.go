package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
	"github.com/kamekamek/googlecalendar-mcp/pkg/logger"
	"github.com/kamekamek/googlecalendar-mcp/pkg/tokeninfo"
)

// fileTokenRecord is the on-disk shape of a TokenInfo. expires_at is
// serialized as seconds since the Unix epoch, mirroring
// original_source/src/oauth/mod.rs's ts_seconds_option, rather than
// tokeninfo.TokenInfo's own RFC3339 wire form (used elsewhere for in-memory
// and API purposes).
type fileTokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    *int64 `json:"expires_at,omitempty"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type"`
}

func toFileRecord(t tokeninfo.TokenInfo) fileTokenRecord {
	rec := fileTokenRecord{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope,
		TokenType:    t.TokenType,
	}
	if t.ExpiresAt != nil {
		sec := t.ExpiresAt.Unix()
		rec.ExpiresAt = &sec
	}
	return rec
}

func fromFileRecord(rec fileTokenRecord) tokeninfo.TokenInfo {
	t := tokeninfo.TokenInfo{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		Scope:        rec.Scope,
		TokenType:    rec.TokenType,
	}
	if rec.ExpiresAt != nil {
		expiresAt := time.Unix(*rec.ExpiresAt, 0).UTC()
		t.ExpiresAt = &expiresAt
	}
	return t
}

// writeJob is a snapshot of the mirror to be flushed to disk, plus a channel
// the submitting call waits on for the write's outcome.
type writeJob struct {
	snapshot map[string]tokeninfo.TokenInfo
	done     chan error
}

// FileStore mirrors tokens in memory and persists the full map to a JSON
// file on every persist/revoke. Disk writes are offloaded to a dedicated
// worker goroutine; the mirror is authoritative within the process and the
// disk file always reflects a valid snapshot of it at some recent instant.
// Grounded on original_source/src/oauth/storage.rs's FileTokenStorage.
type FileStore struct {
	path    string
	encrypt bool

	mu     sync.RWMutex
	mirror map[string]tokeninfo.TokenInfo

	jobs chan writeJob
}

// NewFileStore constructs a FileStore backed by path, loading any existing
// contents. If encrypt is true, a warning is logged once: the flag is
// plumbed for forward compatibility but plaintext is always written.
func NewFileStore(path string, encrypt bool) (*FileStore, error) {
	if encrypt {
		logger.Warn("encrypt_tokens is set but token encryption at rest is not implemented; writing plaintext")
	}

	mirror, err := loadExisting(path)
	if err != nil {
		return nil, errors.NewInternalError("failed to load token store file", err)
	}

	fs := &FileStore{
		path:    path,
		encrypt: encrypt,
		mirror:  mirror,
		jobs:    make(chan writeJob, 16),
	}
	go fs.worker()
	return fs, nil
}

func loadExisting(path string) (map[string]tokeninfo.TokenInfo, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]tokeninfo.TokenInfo), nil
	}
	if err != nil {
		return nil, err
	}
	var records map[string]fileTokenRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	m := make(map[string]tokeninfo.TokenInfo, len(records))
	for userID, rec := range records {
		m[userID] = fromFileRecord(rec)
	}
	return m, nil
}

func (s *FileStore) worker() {
	for job := range s.jobs {
		job.done <- s.writeSnapshot(job.snapshot)
	}
}

func (s *FileStore) writeSnapshot(snapshot map[string]tokeninfo.TokenInfo) error {
	records := make(map[string]fileTokenRecord, len(snapshot))
	for userID, token := range snapshot {
		records[userID] = toFileRecord(token)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// submit enqueues the current mirror snapshot for a disk write and waits for
// it to complete.
func (s *FileStore) submit(ctx context.Context) error {
	s.mu.RLock()
	snapshot := make(map[string]tokeninfo.TokenInfo, len(s.mirror))
	for k, v := range s.mirror {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	done := make(chan error, 1)
	select {
	case s.jobs <- writeJob{snapshot: snapshot, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch implements Store.
func (s *FileStore) Fetch(_ context.Context, userID string) (*tokeninfo.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.mirror[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Persist implements Store.
func (s *FileStore) Persist(ctx context.Context, userID string, token *tokeninfo.TokenInfo) error {
	s.mu.Lock()
	s.mirror[userID] = *token
	s.mu.Unlock()

	if err := s.submit(ctx); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to persist token store to %s", s.path), err)
	}
	return nil
}

// Revoke implements Store.
func (s *FileStore) Revoke(ctx context.Context, userID string) (*tokeninfo.TokenInfo, error) {
	s.mu.Lock()
	t, ok := s.mirror[userID]
	delete(s.mirror, userID)
	s.mu.Unlock()

	if err := s.submit(ctx); err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to persist token store to %s", s.path), err)
	}
	if !ok {
		return nil, nil
	}
	return &t, nil
}

var _ Store = (*FileStore)(nil)
