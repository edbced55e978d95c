package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func TestLockoutState_Remaining(t *testing.T) {
	l := LockoutState{Active: true, StartedAt: epoch, Duration: 30 * time.Second}

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"at start", epoch, 30 * time.Second},
		{"midway", epoch.Add(12500 * time.Millisecond), 17500 * time.Millisecond},
		{"exactly expired", epoch.Add(30 * time.Second), 0},
		{"long after", epoch.Add(time.Hour), 0},
		{"clock behind start", epoch.Add(-5 * time.Second), 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Remaining(tt.now))
		})
	}

	assert.Zero(t, LockoutState{}.Remaining(epoch), "inactive lockout has nothing remaining")
}

func TestLockoutState_Expired(t *testing.T) {
	l := LockoutState{Active: true, StartedAt: epoch, Duration: 30 * time.Second}

	assert.False(t, l.Expired(epoch.Add(29*time.Second)))
	assert.True(t, l.Expired(epoch.Add(30*time.Second)))
	assert.False(t, LockoutState{}.Expired(epoch.Add(time.Hour)))
}

func TestSessionRecord_Valid(t *testing.T) {
	s := &SessionRecord{
		ID:            "s1",
		TabID:         "tab_1741942800000_abcdefghi",
		EstablishedAt: epoch,
		ExpiresAt:     epoch.Add(2 * time.Hour),
	}

	assert.True(t, s.Valid("tab_1741942800000_abcdefghi", epoch.Add(time.Hour)))
	assert.False(t, s.Valid("tab_1741942800000_zzzzzzzzz", epoch.Add(time.Hour)), "other tab")
	assert.False(t, s.Valid("tab_1741942800000_abcdefghi", epoch.Add(2*time.Hour)), "expired")

	var none *SessionRecord
	assert.False(t, none.Valid("tab_1741942800000_abcdefghi", epoch))
}
