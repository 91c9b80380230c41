// Package service keeps the in-memory leaderboard and its persistence in step.
package service

import (
	"context"
	"sync"
	"time"

	judgemodel "judgeboard/internal/judge/model"
	"judgeboard/internal/leaderboard/model"
	"judgeboard/internal/leaderboard/repository"
	appErr "judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the leaderboard. Updates are serialized by one lock, which is also
// held while the accepted update is persisted.
type Store struct {
	mu        sync.RWMutex
	entries   map[model.Key]*model.Entry
	persister repository.Persister
	now       func() time.Time
	newID     func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the submission id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// RecordResult describes one Record call.
type RecordResult struct {
	// Attempt is the entry built from this report.
	Attempt model.Entry
	// Best is the stored entry after the update.
	Best model.Entry
	// Replaced is true when Attempt became the stored entry.
	Replaced bool
	// Warning is set when the accepted update could not be persisted.
	Warning string
}

// NewStore loads persisted entries. Duplicate (user, problem) records keep the better one.
func NewStore(ctx context.Context, persister repository.Persister, opts ...Option) (*Store, error) {
	if persister == nil {
		persister = repository.NopPersister{}
	}
	s := &Store{
		entries:   make(map[model.Key]*model.Entry),
		persister: persister,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := persister.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range loaded {
		e := loaded[i].Clone()
		if cur, ok := s.entries[e.Key()]; ok && !model.Better(&e, cur) {
			continue
		}
		s.entries[e.Key()] = &e
	}
	logger.Info(ctx, "leaderboard loaded", zap.Int("entries", len(s.entries)))
	return s, nil
}

// Record folds a grading report into the leaderboard. The stored entry for the
// (user, problem) slot is replaced only when the attempt is strictly better.
func (s *Store) Record(ctx context.Context, userID, problemID string, report *judgemodel.GradingReport) RecordResult {
	execSec := report.ExecutionSeconds()
	attempt := model.Entry{
		SubmissionID:  s.newID(),
		UserID:        userID,
		ProblemID:     problemID,
		Score:         report.Passed,
		Total:         report.Total,
		Verdict:       string(report.Verdict),
		ReplayResult:  model.ReplayLabel(report.Passed, report.Total),
		ExecutionTime: &execSec,
		Timestamp:     s.now(),
		ErrorDetails:  report.PersistedErrors(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := attempt.Key()
	cur, ok := s.entries[key]
	if ok && !model.Better(&attempt, cur) {
		return RecordResult{Attempt: attempt.Clone(), Best: cur.Clone()}
	}

	stored := attempt.Clone()
	s.entries[key] = &stored
	result := RecordResult{Attempt: attempt.Clone(), Best: stored.Clone(), Replaced: true}

	if err := s.persister.Save(ctx, s.snapshotLocked(), &stored); err != nil {
		err = appErr.Wrap(err, appErr.LeaderboardPersistFailed)
		logger.Warn(ctx, "persist leaderboard failed",
			zap.String("user_id", userID),
			zap.String("problem_id", problemID),
			zap.Error(err),
		)
		result.Warning = "Failed to save leaderboard: " + err.Error()
	}
	return result
}

// Get returns the stored entry for a (user, problem) slot.
func (s *Store) Get(userID, problemID string) (model.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[model.Key{UserID: userID, ProblemID: problemID}]
	if !ok {
		return model.Entry{}, false
	}
	return e.Clone(), true
}

// Entries returns a copy of every stored entry in ranking order.
func (s *Store) Entries() []model.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// View builds the grouped and flattened ranking.
func (s *Store) View() model.View {
	s.mu.RLock()
	snapshot := s.snapshotLocked()
	s.mu.RUnlock()
	return model.BuildView(snapshot)
}

// Flush writes the whole leaderboard through the persister.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persister.Save(ctx, s.snapshotLocked(), nil); err != nil {
		return appErr.Wrap(err, appErr.LeaderboardPersistFailed)
	}
	return nil
}

func (s *Store) snapshotLocked() []model.Entry {
	out := make([]model.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	model.Sort(out)
	return out
}
