package models

import "time"

// Prompt is a question issued to a user in a session, answerable once.
type Prompt struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	QuestionID string    `json:"questionId"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// Expired reports whether the prompt is older than ttl at now.
func (p Prompt) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(p.IssuedAt) > ttl
}
