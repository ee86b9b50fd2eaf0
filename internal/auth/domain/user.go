package domain

import "time"

type User struct {
	ID           string
	Email        string
	Username     string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Challenge is a single-use, time-bounded second-factor login challenge.
// It is redeemable only while Used is false and ExpiresAt is in the future.
type Challenge struct {
	ID        string
	UserID    string
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func (c *Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
