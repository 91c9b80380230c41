package repository

import (
	"context"

	"judgeboard/internal/leaderboard/model"
)

// Persister stores leaderboard entries between process runs.
type Persister interface {
	// Load returns every stored entry. An empty store yields no entries and no error.
	Load(ctx context.Context) ([]model.Entry, error)
	// Save persists the store after an update. changed is the entry that was
	// just inserted or replaced; nil asks for the whole snapshot to be written.
	Save(ctx context.Context, snapshot []model.Entry, changed *model.Entry) error
}

// NopPersister keeps nothing.
type NopPersister struct{}

func (NopPersister) Load(context.Context) ([]model.Entry, error) { return nil, nil }

func (NopPersister) Save(context.Context, []model.Entry, *model.Entry) error { return nil }
