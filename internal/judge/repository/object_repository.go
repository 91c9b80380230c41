package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"judgeboard/internal/common/storage"
	"judgeboard/internal/judge/model"
	appErr "judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"go.uber.org/zap"
)

// ObjectRepository reads test data from an object store bucket.
type ObjectRepository struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
}

// NewObjectRepository creates a repository over bucket/prefix.
func NewObjectRepository(store storage.ObjectStorage, bucket, prefix string) (*ObjectRepository, error) {
	if store == nil {
		return nil, appErr.New(appErr.StorageError).WithMessage("object storage is required")
	}
	if bucket == "" {
		return nil, appErr.ValidationError("bucket", "required")
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ObjectRepository{storage: store, bucket: bucket, prefix: prefix}, nil
}

func (r *ObjectRepository) Get(ctx context.Context, problemID string) (*model.Problem, error) {
	if err := validateProblemID(problemID); err != nil {
		return nil, err
	}
	for _, compressed := range []bool{false, true} {
		p, _, err := r.fetch(ctx, problemID, r.prefix+fileName(problemID, compressed), compressed)
		if errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, problemNotFound(problemID)
}

func (r *ObjectRepository) fetch(ctx context.Context, problemID, key string, compressed bool) (*model.Problem, bool, error) {
	obj, err := r.storage.GetObject(ctx, r.bucket, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, false, err
	}
	if err != nil {
		return nil, false, appErr.Wrapf(err, appErr.StorageError, "fetch test data for %s failed", problemID)
	}
	defer obj.Close()
	return decodeProblem(problemID, obj, compressed)
}

func (r *ObjectRepository) List(ctx context.Context) ([]string, error) {
	objects, err := r.storage.ListObjects(ctx, r.bucket, r.prefix)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "list test data failed")
	}
	seen := make(map[string]struct{}, len(objects))
	ids := make([]string, 0, len(objects))
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, r.prefix)
		if strings.Contains(name, "/") {
			continue
		}
		id, compressed, ok := idFromName(name)
		if !ok || validateProblemID(id) != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		_, hasTests, err := r.fetch(ctx, id, obj.Key, compressed)
		if err != nil {
			logger.Warn(ctx, "skip invalid test data object", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		if !hasTests {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
