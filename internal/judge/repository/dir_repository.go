package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"judgeboard/internal/judge/model"
	appErr "judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"go.uber.org/zap"
)

// DirRepository reads "<id>.json" or "<id>.json.zst" files from one directory.
type DirRepository struct {
	root string
}

// NewDirRepository creates a repository rooted at dir.
func NewDirRepository(dir string) (*DirRepository, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.TestCaseNotFound, "test data dir %s unavailable", dir)
	}
	if !info.IsDir() {
		return nil, appErr.Newf(appErr.TestCaseNotFound, "test data path %s is not a directory", dir)
	}
	return &DirRepository{root: dir}, nil
}

func (r *DirRepository) Get(ctx context.Context, problemID string) (*model.Problem, error) {
	if err := validateProblemID(problemID); err != nil {
		return nil, err
	}
	for _, compressed := range []bool{false, true} {
		path := filepath.Join(r.root, fileName(problemID, compressed))
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.TestCaseInvalid, "open test data for %s failed", problemID)
		}
		p, _, err := decodeProblem(problemID, f, compressed)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, problemNotFound(problemID)
}

func (r *DirRepository) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.TestCaseNotFound, "read test data dir failed")
	}
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, compressed, ok := idFromName(entry.Name())
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		f, err := os.Open(filepath.Join(r.root, entry.Name()))
		if err != nil {
			logger.Warn(ctx, "skip unreadable test data", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		_, hasTests, err := decodeProblem(id, f, compressed)
		_ = f.Close()
		if err != nil || !hasTests {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
