package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"judgeboard/internal/leaderboard/model"
	appErr "judgeboard/pkg/errors"
)

// FilePersister keeps the leaderboard as a JSON array in one file.
// Every save rewrites the file through a temp file and rename.
type FilePersister struct {
	path string
}

// NewFilePersister creates a file persister. The parent directory is created on first save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Load reads the file; a missing or empty file is an empty leaderboard.
func (p *FilePersister) Load(_ context.Context) ([]model.Entry, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.LeaderboardLoadFailed, "read leaderboard file failed")
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []model.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, appErr.Wrapf(err, appErr.LeaderboardLoadFailed, "decode leaderboard file failed")
	}
	return entries, nil
}

// Save writes the full snapshot; changed is ignored.
func (p *FilePersister) Save(_ context.Context, snapshot []model.Entry, _ *model.Entry) error {
	if snapshot == nil {
		snapshot = []model.Entry{}
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "encode leaderboard failed")
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "create leaderboard dir failed")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "create temp file failed")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "write temp file failed")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "sync temp file failed")
	}
	if err := tmp.Close(); err != nil {
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "close temp file failed")
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "replace leaderboard file failed")
	}
	return nil
}
