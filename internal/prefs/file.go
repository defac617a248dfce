package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const prefsDirName = "view_prefs"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStore keeps one JSON blob per view key under Dir. It is best effort: a missing
// file loads as an empty blob.
type FileStore struct {
	Dir string
}

func (s FileStore) path(viewKey string) string {
	name := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(viewKey), "_")
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.Dir, prefsDirName, name+".json")
}

func (s FileStore) LoadViewPreference(ctx context.Context, viewKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Dir) == "" {
		return nil, nil
	}
	b, err := os.ReadFile(s.path(viewKey))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (s FileStore) SaveViewPreference(ctx context.Context, viewKey string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Dir) == "" {
		return nil
	}
	path := s.path(viewKey)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
