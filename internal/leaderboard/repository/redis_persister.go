package repository

import (
	"context"
	"encoding/json"

	"judgeboard/internal/common/cache"
	"judgeboard/internal/leaderboard/model"
	appErr "judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// DefaultRedisKey is the hash holding all entries.
	DefaultRedisKey = "leaderboard:entries"
	fieldSeparator  = "\x1f"
)

// RedisPersister stores one hash field per (user, problem).
type RedisPersister struct {
	cache cache.Cache
	key   string
}

// NewRedisPersister creates a Redis persister; an empty key uses DefaultRedisKey.
func NewRedisPersister(cacheClient cache.Cache, key string) *RedisPersister {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPersister{cache: cacheClient, key: key}
}

// Load reads every field of the hash. Fields that fail to decode are skipped.
func (p *RedisPersister) Load(ctx context.Context) ([]model.Entry, error) {
	fields, err := p.cache.HGetAll(ctx, p.key)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.LeaderboardLoadFailed, "load leaderboard hash failed")
	}
	entries := make([]model.Entry, 0, len(fields))
	for field, raw := range fields {
		var e model.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			logger.Warn(ctx, "skip undecodable leaderboard entry", zap.String("field", field), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Save writes the changed field, or replaces the whole hash when changed is nil.
func (p *RedisPersister) Save(ctx context.Context, snapshot []model.Entry, changed *model.Entry) error {
	if changed != nil {
		data, err := json.Marshal(changed)
		if err != nil {
			return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "encode leaderboard entry failed")
		}
		if err := p.cache.HSet(ctx, p.key, entryField(changed), data); err != nil {
			return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "write leaderboard entry failed")
		}
		return nil
	}

	fields := make(map[string]interface{}, len(snapshot))
	for i := range snapshot {
		data, err := json.Marshal(&snapshot[i])
		if err != nil {
			return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "encode leaderboard entry failed")
		}
		fields[entryField(&snapshot[i])] = data
	}
	if err := p.cache.ReplaceHash(ctx, p.key, fields); err != nil {
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "replace leaderboard hash failed")
	}
	return nil
}

func entryField(e *model.Entry) string {
	return e.UserID + fieldSeparator + e.ProblemID
}
