package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Profile stores the defaults remembered between sessions.
type Profile struct {
	UserID    string `json:"user_id"`
	ProblemID string `json:"problem_id"`
}

func Load(path string) (Profile, error) {
	var st Profile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read profile failed: %w", err)
	}
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse profile failed: %w", err)
	}
	return st, nil
}

func Save(path string, st Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create profile dir failed: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write profile failed: %w", err)
	}
	return nil
}
