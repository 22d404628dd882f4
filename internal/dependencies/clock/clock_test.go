package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClockIsUTC(t *testing.T) {
	now := New().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

type fixedClock time.Time

func (f fixedClock) Now() time.Time { return time.Time(f) }

func TestBefore(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 50, 0, 0, time.UTC), Before(fixedClock(now), 10*time.Minute))
}
