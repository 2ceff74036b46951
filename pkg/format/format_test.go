package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	assert.Equal(t, "0 B", Bytes(0))
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "1.5 KB", Bytes(1536))
	assert.Equal(t, "75.0 MB", Bytes(75*1024*1024))
	assert.Equal(t, "2.0 GB", Bytes(2*1024*1024*1024))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "7", Number(7))
	assert.Equal(t, "1,234,567", Number(1234567))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "0.0%", Percentage(0))
	assert.Equal(t, "33.3%", Percentage(1.0/3))
	assert.Equal(t, "100.0%", Percentage(1))
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", RelativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "1 minute ago", RelativeTime(now.Add(-time.Minute), now))
	assert.Equal(t, "5 minutes ago", RelativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3 hours ago", RelativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2 days ago", RelativeTime(now.Add(-49*time.Hour), now))
	assert.Equal(t, "in the future", RelativeTime(now.Add(time.Hour), now))
}
