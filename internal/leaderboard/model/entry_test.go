package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"judgeboard/internal/leaderboard/model"
)

func secs(v float64) *float64 { return &v }

func TestBetter(t *testing.T) {
	old := &model.Entry{Score: 3, ExecutionTime: secs(1.0)}
	cases := []struct {
		name string
		next *model.Entry
		want bool
	}{
		{name: "same score faster", next: &model.Entry{Score: 3, ExecutionTime: secs(0.5)}, want: true},
		{name: "lower score faster", next: &model.Entry{Score: 2, ExecutionTime: secs(0.1)}, want: false},
		{name: "higher score slower", next: &model.Entry{Score: 4, ExecutionTime: secs(9)}, want: true},
		{name: "same score same time", next: &model.Entry{Score: 3, ExecutionTime: secs(1.0)}, want: false},
		{name: "same score missing time", next: &model.Entry{Score: 3}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := model.Better(tc.next, old); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	missing := &model.Entry{Score: 3}
	if !model.Better(&model.Entry{Score: 3, ExecutionTime: secs(100)}, missing) {
		t.Fatalf("any measured time should beat a missing one")
	}
}

func TestBuildViewOrdersAndDedupes(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []model.Entry{
		{SubmissionID: "s1", UserID: "carol", ProblemID: "p1", Score: 3, ExecutionTime: secs(0.1), Timestamp: base},
		{SubmissionID: "s2", UserID: "alice", ProblemID: "p1", Score: 5, ExecutionTime: secs(2.0), Timestamp: base},
		{SubmissionID: "s3", UserID: "bob", ProblemID: "p1", Score: 5, ExecutionTime: secs(1.0), Timestamp: base.Add(time.Minute)},
		{SubmissionID: "s4", UserID: "bob", ProblemID: "p1", Score: 1, ExecutionTime: secs(0.01), Timestamp: base},
		{SubmissionID: "s5", UserID: "alice", ProblemID: "a0", Score: 5, Timestamp: base},
		{SubmissionID: "s6", UserID: "dave", ProblemID: "a0", Score: 5, ExecutionTime: secs(3), Timestamp: base.Add(time.Hour)},
	}

	view := model.BuildView(entries)
	if len(view.Problems) != 2 || view.Problems[0].ProblemID != "a0" || view.Problems[1].ProblemID != "p1" {
		t.Fatalf("unexpected problem grouping: %+v", view.Problems)
	}

	p1 := view.Problems[1].Rows
	wantUsers := []string{"bob", "alice", "carol"}
	if len(p1) != len(wantUsers) {
		t.Fatalf("expected %d rows, got %d", len(wantUsers), len(p1))
	}
	for i, u := range wantUsers {
		if p1[i].UserID != u || p1[i].Rank != i+1 {
			t.Fatalf("row %d: expected %s rank %d, got %s rank %d", i, u, i+1, p1[i].UserID, p1[i].Rank)
		}
	}
	if p1[0].SubmissionID != "s3" {
		t.Fatalf("expected bob's best entry, got %s", p1[0].SubmissionID)
	}

	a0 := view.Problems[0].Rows
	if a0[0].UserID != "dave" || a0[1].UserID != "alice" {
		t.Fatalf("missing execution time must sort last: %+v", a0)
	}

	if len(view.Leaderboard) != 5 {
		t.Fatalf("expected 5 flattened rows, got %d", len(view.Leaderboard))
	}
	wantFlat := []string{"s3", "s2", "s6", "s5", "s1"}
	for i, id := range wantFlat {
		if view.Leaderboard[i].SubmissionID != id || view.Leaderboard[i].Rank != i+1 {
			t.Fatalf("flat row %d: expected %s, got %s", i, id, view.Leaderboard[i].SubmissionID)
		}
	}
}

func TestBuildViewTimestampTieBreak(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	view := model.BuildView([]model.Entry{
		{SubmissionID: "late", UserID: "b", ProblemID: "p", Score: 2, ExecutionTime: secs(1), Timestamp: base.Add(time.Second)},
		{SubmissionID: "early", UserID: "a", ProblemID: "p", Score: 2, ExecutionTime: secs(1), Timestamp: base},
	})
	if view.Leaderboard[0].SubmissionID != "early" {
		t.Fatalf("earlier timestamp should rank first")
	}
}

func TestBuildViewEmpty(t *testing.T) {
	view := model.BuildView(nil)
	if view.Problems == nil || view.Leaderboard == nil {
		t.Fatalf("empty view should use empty slices")
	}
}

func TestEntryTimestampLayouts(t *testing.T) {
	var zoned model.Entry
	if err := json.Unmarshal([]byte(`{"timestamp":"2026-03-01T12:00:00Z"}`), &zoned); err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if !zoned.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", zoned.Timestamp)
	}

	var local model.Entry
	if err := json.Unmarshal([]byte(`{"user_id":"bob","timestamp":"2026-03-01T12:00:00"}`), &local); err != nil {
		t.Fatalf("zone-less: %v", err)
	}
	if local.UserID != "bob" || local.Timestamp.Hour() != 12 || local.Timestamp.Location() != time.Local {
		t.Fatalf("unexpected entry %+v", local)
	}

	var bad model.Entry
	if err := json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &bad); err == nil {
		t.Fatalf("expected parse error")
	}
}
