package expire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWillExpireAt(t *testing.T) {
	due := time.Date(2023, 8, 31, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		createdAt time.Time
		want      time.Time
	}{
		{name: "within 90 min", createdAt: due.Add(-time.Hour), want: due},
		{name: "exactly 90 min", createdAt: due.Add(-90 * time.Minute), want: due},
		{name: "within 24 hours", createdAt: due.Add(-2 * time.Hour), want: due.Add(-30 * time.Minute)},
		{name: "exactly 24 hours", createdAt: due.Add(-24 * time.Hour), want: due.Add(-30 * time.Minute)},
		{name: "within 72 hours", createdAt: due.Add(-48 * time.Hour), want: due.Add(-8 * time.Hour)},
		{name: "just under 72 hours", createdAt: due.Add(-72*time.Hour + time.Minute), want: due.Add(-8 * time.Hour)},
		{name: "exactly 72 hours", createdAt: due.Add(-72 * time.Hour), want: due.Add(-48 * time.Hour)},
		{name: "after 72 hours", createdAt: due.Add(-5 * 24 * time.Hour), want: due.Add(-48 * time.Hour)},
		{name: "due in the past", createdAt: due.Add(time.Hour), want: due},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WillExpireAt(due, tt.createdAt))
		})
	}
}

func TestWillExpireAt_Deterministic(t *testing.T) {
	due := time.Date(2023, 8, 31, 12, 0, 0, 0, time.UTC)
	createdAt := due.Add(-36 * time.Hour)
	first := WillExpireAt(due, createdAt)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, WillExpireAt(due, createdAt))
	}
}
