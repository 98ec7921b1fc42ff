package domain

import "time"

// MagicLink records an issued magic-link token so it can be consumed once.
type MagicLink struct {
	TokenID   string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}
