package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToday(t *testing.T) {
	// 23:30 UTC on March 9 is already March 10 in Sofia and still March 9 in New York.
	now := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)

	sofia := &User{Timezone: "Europe/Sofia"}
	assert.Equal(t, "2025-03-10", sofia.Today(now).Format("2006-01-02"))

	ny := &User{Timezone: "America/New_York"}
	assert.Equal(t, "2025-03-09", ny.Today(now).Format("2006-01-02"))

	utc := &User{}
	assert.Equal(t, "2025-03-09", utc.Today(now).Format("2006-01-02"))
	assert.Equal(t, time.UTC, utc.Today(now).Location())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, (&User{Timezone: "Mars/Olympus"}).Location())
	var nilUser *User
	assert.Equal(t, time.UTC, nilUser.Location())
}
