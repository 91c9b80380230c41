package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"judgeboard/internal/common/db"
	"judgeboard/internal/leaderboard/model"
	appErr "judgeboard/pkg/errors"
	"judgeboard/pkg/utils/logger"

	"go.uber.org/zap"
)

const leaderboardColumns = "user_id, problem_id, submission_id, score, total, verdict, replay_result, execution_time, submitted_at, error_details"

// SQLPersister stores entries in the leaderboard_entries table, one row per (user, problem).
type SQLPersister struct {
	db db.Database
}

// NewSQLPersister creates a SQL persister.
func NewSQLPersister(database db.Database) *SQLPersister {
	return &SQLPersister{db: database}
}

// EnsureSchema creates the table when it does not exist.
func (p *SQLPersister) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createTableSQL(p.db.Dialect())); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "create leaderboard table failed")
	}
	return nil
}

// Load reads every row.
func (p *SQLPersister) Load(ctx context.Context) ([]model.Entry, error) {
	rows, err := p.db.Query(ctx, "SELECT "+leaderboardColumns+" FROM leaderboard_entries")
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.LeaderboardLoadFailed, "query leaderboard failed")
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var (
			e       model.Entry
			execSec sql.NullFloat64
			details sql.NullString
		)
		if err := rows.Scan(
			&e.UserID,
			&e.ProblemID,
			&e.SubmissionID,
			&e.Score,
			&e.Total,
			&e.Verdict,
			&e.ReplayResult,
			&execSec,
			&e.Timestamp,
			&details,
		); err != nil {
			return nil, appErr.Wrapf(err, appErr.LeaderboardLoadFailed, "scan leaderboard row failed")
		}
		if execSec.Valid {
			v := execSec.Float64
			e.ExecutionTime = &v
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.ErrorDetails); err != nil {
				logger.Warn(ctx, "ignore undecodable error details", zap.String("submission_id", e.SubmissionID), zap.Error(err))
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.LeaderboardLoadFailed, "iterate leaderboard rows failed")
	}
	return entries, nil
}

// Save upserts the changed row, or every row of the snapshot in one transaction
// when changed is nil.
func (p *SQLPersister) Save(ctx context.Context, snapshot []model.Entry, changed *model.Entry) error {
	query := upsertSQL(p.db.Dialect())
	if changed != nil {
		args, err := entryArgs(changed)
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(ctx, query, args...); err != nil {
			return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "upsert leaderboard entry failed")
		}
		return nil
	}

	err := p.db.Transaction(ctx, func(tx db.Transaction) error {
		for i := range snapshot {
			args, err := entryArgs(&snapshot[i])
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "flush leaderboard failed")
	}
	return nil
}

func entryArgs(e *model.Entry) ([]interface{}, error) {
	details := e.ErrorDetails
	if details == nil {
		details = []string{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.LeaderboardPersistFailed, "encode error details failed")
	}
	var execSec interface{}
	if e.ExecutionTime != nil {
		execSec = *e.ExecutionTime
	}
	return []interface{}{
		e.UserID,
		e.ProblemID,
		e.SubmissionID,
		e.Score,
		e.Total,
		e.Verdict,
		e.ReplayResult,
		execSec,
		e.Timestamp.UTC().Truncate(time.Microsecond),
		string(raw),
	}, nil
}

func upsertSQL(dialect db.Dialect) string {
	cols := strings.Split(leaderboardColumns, ", ")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	updates := make([]string, 0, len(cols)-2)
	for _, c := range cols[2:] {
		if dialect == db.DialectPostgres {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		} else {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
	}
	conflict := "ON DUPLICATE KEY UPDATE "
	if dialect == db.DialectPostgres {
		conflict = "ON CONFLICT (user_id, problem_id) DO UPDATE SET "
	}
	return fmt.Sprintf("INSERT INTO leaderboard_entries (%s) VALUES (%s) %s%s",
		leaderboardColumns, placeholders, conflict, strings.Join(updates, ", "))
}

func createTableSQL(dialect db.Dialect) string {
	if dialect == db.DialectPostgres {
		return `CREATE TABLE IF NOT EXISTS leaderboard_entries (
	user_id VARCHAR(128) NOT NULL,
	problem_id VARCHAR(128) NOT NULL,
	submission_id VARCHAR(64) NOT NULL,
	score INTEGER NOT NULL,
	total INTEGER NOT NULL,
	verdict VARCHAR(16) NOT NULL,
	replay_result VARCHAR(64) NOT NULL,
	execution_time DOUBLE PRECISION NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	error_details TEXT NOT NULL,
	PRIMARY KEY (user_id, problem_id)
)`
	}
	return `CREATE TABLE IF NOT EXISTS leaderboard_entries (
	user_id VARCHAR(128) NOT NULL,
	problem_id VARCHAR(128) NOT NULL,
	submission_id VARCHAR(64) NOT NULL,
	score INT NOT NULL,
	total INT NOT NULL,
	verdict VARCHAR(16) NOT NULL,
	replay_result VARCHAR(64) NOT NULL,
	execution_time DOUBLE NULL,
	submitted_at DATETIME(6) NOT NULL,
	error_details TEXT NOT NULL,
	PRIMARY KEY (user_id, problem_id)
)`
}
