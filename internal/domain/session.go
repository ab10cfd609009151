package domain

import "time"

// SessionResult carries the issued token pair and account summary
// returned by a successful session operation. It is never persisted.
type SessionResult struct {
	AccessToken  string
	RefreshToken string
	AccountID    int64
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	ExpiresAt    time.Time
}
