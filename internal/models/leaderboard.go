package models

import "time"

// LeaderboardEntry 리더보드 한 줄
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"userId"`
	CorrectAnswers int     `json:"correctAnswers"`
	TotalAttempts  int     `json:"totalAttempts"`
	Accuracy       float64 `json:"accuracy"`
}

// LeaderboardSnapshot is an immutable top-N capture.
type LeaderboardSnapshot struct {
	Entries    []LeaderboardEntry `json:"entries"`
	CapturedAt time.Time          `json:"capturedAt"`
}

// IsZero reports whether the snapshot was never captured.
func (s LeaderboardSnapshot) IsZero() bool {
	return s.CapturedAt.IsZero()
}

// Age returns how old the snapshot is at now.
func (s LeaderboardSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}
