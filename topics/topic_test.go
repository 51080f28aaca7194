package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullName(t *testing.T) {
	assert.Equal(t, "events.meeting.started", New("events", "meeting.started").FullName())
	assert.Equal(t, "events.meeting.started", New("events.", "meeting.started").FullName())
	assert.Equal(t, "meeting.started", New("", "meeting.started").FullName())
	assert.Equal(t, "meeting.started", New("events", "meeting.started").Name())
}

func TestPattern(t *testing.T) {
	assert.Equal(t, "test.events.*", Pattern("test.events."))
	assert.Equal(t, "*", Pattern(""))
}
