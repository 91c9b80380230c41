package model

import "sort"

// Row is one ranked line of the leaderboard.
type Row struct {
	Rank int `json:"rank"`
	Entry
}

// ProblemBoard is the ranking of one problem.
type ProblemBoard struct {
	ProblemID string `json:"problem_id"`
	Rows      []Row  `json:"rows"`
}

// View is the derived leaderboard: per-problem boards ordered by problem id,
// plus every surfaced row ranked globally.
type View struct {
	Problems    []ProblemBoard `json:"problems"`
	Leaderboard []Row          `json:"leaderboard"`
}

// BuildView groups entries by problem, keeps the best entry per user in each
// problem, and ranks both the groups and the flattened list.
func BuildView(entries []Entry) View {
	byProblem := make(map[string][]Entry)
	var problemIDs []string
	for _, e := range entries {
		if _, ok := byProblem[e.ProblemID]; !ok {
			problemIDs = append(problemIDs, e.ProblemID)
		}
		byProblem[e.ProblemID] = append(byProblem[e.ProblemID], e.Clone())
	}
	sort.Strings(problemIDs)

	view := View{
		Problems:    make([]ProblemBoard, 0, len(problemIDs)),
		Leaderboard: []Row{},
	}
	var flat []Entry
	for _, pid := range problemIDs {
		group := byProblem[pid]
		Sort(group)
		seen := make(map[string]struct{}, len(group))
		board := ProblemBoard{ProblemID: pid, Rows: make([]Row, 0, len(group))}
		for _, e := range group {
			if _, dup := seen[e.UserID]; dup {
				continue
			}
			seen[e.UserID] = struct{}{}
			board.Rows = append(board.Rows, Row{Rank: len(board.Rows) + 1, Entry: e})
			flat = append(flat, e)
		}
		view.Problems = append(view.Problems, board)
	}

	Sort(flat)
	for i, e := range flat {
		view.Leaderboard = append(view.Leaderboard, Row{Rank: i + 1, Entry: e})
	}
	return view
}
