package repository

import (
	"context"
	"sync"

	"judgeboard/internal/judge/model"

	"github.com/zeromicro/go-zero/core/syncx"
)

// CachedRepository memoizes problems for the process lifetime. Concurrent
// misses for the same id share one load. Not-found results are not cached.
type CachedRepository struct {
	next   ProblemRepository
	flight syncx.SingleFlight

	mu       sync.RWMutex
	problems map[string]*model.Problem
}

// NewCachedRepository wraps next.
func NewCachedRepository(next ProblemRepository) *CachedRepository {
	return &CachedRepository{
		next:     next,
		flight:   syncx.NewSingleFlight(),
		problems: make(map[string]*model.Problem),
	}
}

func (r *CachedRepository) Get(ctx context.Context, problemID string) (*model.Problem, error) {
	r.mu.RLock()
	p, ok := r.problems[problemID]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	val, err := r.flight.Do(problemID, func() (any, error) {
		loaded, err := r.next.Get(ctx, problemID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.problems[problemID] = loaded
		r.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*model.Problem), nil
}

func (r *CachedRepository) List(ctx context.Context) ([]string, error) {
	return r.next.List(ctx)
}

// Invalidate drops cached entries; no ids drops everything.
func (r *CachedRepository) Invalidate(problemIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(problemIDs) == 0 {
		r.problems = make(map[string]*model.Problem)
		return
	}
	for _, id := range problemIDs {
		delete(r.problems, id)
	}
}
