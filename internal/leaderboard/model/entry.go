package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// localTimestamp is the zone-less ISO layout written by older leaderboard files.
const localTimestamp = "2006-01-02T15:04:05.999999999"

// Entry is the best recorded attempt of one user on one problem.
type Entry struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	ProblemID    string `json:"problem_id"`
	Score        int    `json:"score"`
	Total        int    `json:"total"`
	Verdict      string `json:"verdict"`
	ReplayResult string `json:"replay_result"`
	// ExecutionTime is in seconds. Nil sorts after every measured time.
	ExecutionTime *float64  `json:"execution_time,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	ErrorDetails  []string  `json:"error_details"`
}

// UnmarshalJSON accepts RFC 3339 timestamps and zone-less ones, read as local time.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	aux := struct {
		*plain
		Timestamp string `json:"timestamp"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp == "" {
		e.Timestamp = time.Time{}
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		var localErr error
		ts, localErr = time.ParseInLocation(localTimestamp, aux.Timestamp, time.Local)
		if localErr != nil {
			return fmt.Errorf("parse timestamp %q: %w", aux.Timestamp, err)
		}
	}
	e.Timestamp = ts
	return nil
}

// Key identifies the (user, problem) slot an entry occupies.
type Key struct {
	UserID    string
	ProblemID string
}

// Key returns the entry's slot key.
func (e *Entry) Key() Key {
	return Key{UserID: e.UserID, ProblemID: e.ProblemID}
}

// Seconds returns the execution time, or +Inf when it is missing.
func (e *Entry) Seconds() float64 {
	if e.ExecutionTime == nil {
		return math.Inf(1)
	}
	return *e.ExecutionTime
}

// ReplayLabel formats the "<score>/<total> tests passed" label.
func ReplayLabel(score, total int) string {
	return fmt.Sprintf("%d/%d tests passed", score, total)
}

// Better reports whether candidate should replace current: a higher score,
// or an equal score with a strictly lower execution time.
func Better(candidate, current *Entry) bool {
	if candidate.Score != current.Score {
		return candidate.Score > current.Score
	}
	return candidate.Seconds() < current.Seconds()
}

// Less is the ranking order: score desc, execution time asc, timestamp asc,
// then submission id for a total order.
func Less(a, b *Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if sa, sb := a.Seconds(), b.Seconds(); sa != sb {
		return sa < sb
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.SubmissionID < b.SubmissionID
}

// Sort orders entries in place by Less.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(&entries[i], &entries[j])
	})
}

// Clone returns a deep copy.
func (e Entry) Clone() Entry {
	out := e
	if e.ExecutionTime != nil {
		v := *e.ExecutionTime
		out.ExecutionTime = &v
	}
	if e.ErrorDetails != nil {
		out.ErrorDetails = append([]string(nil), e.ErrorDetails...)
	}
	return out
}
