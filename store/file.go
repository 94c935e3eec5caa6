package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/authsession/schema"
)

const tmpSuffix = ".tmp"

// FileStore persists the token pair as a single JSON snapshot. A write goes to
// URL.tmp first and is then moved over URL, so a snapshot always holds a whole pair.
type FileStore struct {
	mu     sync.Mutex
	URL    string
	fs     afs.Service
	logger *slog.Logger
}

type fileSnapshot struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (s *fileSnapshot) value(key string) (string, bool) {
	switch key {
	case AccessTokenKey:
		return s.AccessToken, s.AccessToken != ""
	case RefreshTokenKey:
		return s.RefreshToken, s.RefreshToken != ""
	}
	return "", false
}

// NewFileStore creates a Store that persists tokens at the given URL (any afs supported scheme or a local path).
// A leftover write marker or a snapshot holding only one token is repaired by clearing the pair.
func NewFileStore(ctx context.Context, URL string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ret := &FileStore{URL: URL, fs: afs.New(), logger: logger}
	if err := ret.repair(ctx); err != nil {
		return nil, err
	}
	return ret, nil
}

func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot, err := f.load(ctx)
	if err != nil {
		return "", false, schema.NewStorageError("get "+key, err)
	}
	if snapshot == nil {
		return "", false, nil
	}
	value, ok := snapshot.value(key)
	return value, ok, nil
}

func (f *FileStore) SetPair(ctx context.Context, pair *schema.TokenPair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(&fileSnapshot{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	if err != nil {
		return schema.NewStorageError("set pair", err)
	}
	tmp := f.URL + tmpSuffix
	if err = f.fs.Upload(ctx, tmp, 0o600, bytes.NewReader(data)); err != nil {
		return schema.NewStorageError("set pair", err)
	}
	if err = f.fs.Move(ctx, tmp, f.URL); err != nil {
		return schema.NewStorageError("set pair", err)
	}
	return nil
}

func (f *FileStore) ClearPair(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.clear(ctx); err != nil {
		return schema.NewStorageError("clear pair", err)
	}
	return nil
}

func (f *FileStore) clear(ctx context.Context) error {
	for _, URL := range []string{f.URL, f.URL + tmpSuffix} {
		exists, err := f.fs.Exists(ctx, URL)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if err = f.fs.Delete(ctx, URL); err != nil {
			return err
		}
	}
	return nil
}

func (f *FileStore) load(ctx context.Context) (*fileSnapshot, error) {
	exists, err := f.fs.Exists(ctx, f.URL)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	data, err := f.fs.DownloadWithURL(ctx, f.URL)
	if err != nil {
		return nil, err
	}
	snapshot := &fileSnapshot{}
	if err = json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("corrupted credentials %v: %w", f.URL, err)
	}
	return snapshot, nil
}

func (f *FileStore) repair(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := f.URL + tmpSuffix
	if exists, _ := f.fs.Exists(ctx, tmp); exists {
		f.logger.Warn("removing interrupted credential write", "url", tmp)
		if err := f.fs.Delete(ctx, tmp); err != nil {
			return schema.NewStorageError("repair", err)
		}
	}
	snapshot, err := f.load(ctx)
	if err == nil && (snapshot == nil || (snapshot.AccessToken == "") == (snapshot.RefreshToken == "")) {
		return nil
	}
	f.logger.Warn("clearing half written credentials", "url", f.URL, "error", err)
	if err = f.clear(ctx); err != nil {
		return schema.NewStorageError("repair", err)
	}
	return nil
}
