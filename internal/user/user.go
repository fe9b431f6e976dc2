package user

import (
	"time"

	"github.com/google/uuid"
)

const DefaultTimezone = "UTC"

// User mirrors the identity provider's account locally. ClerkID is the
// provider subject; Timezone is an IANA name that anchors every "today".
type User struct {
	ID        uuid.UUID `json:"id"`
	ClerkID   string    `json:"clerkId"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Location resolves the user's timezone, falling back to UTC for an
// empty or unknown name.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today returns the user's local calendar date for the instant now.
func (u *User) Today(now time.Time) time.Time {
	local := now.In(u.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
