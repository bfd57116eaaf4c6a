package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s, err := NewSession(0, 30)
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, uint64(0), s.FrameIndex)
	assert.Equal(t, StateIdle, s.State)
	assert.False(t, s.Halted)
	assert.Equal(t, -1, s.LastSlot)
	assert.WithinDuration(t, time.Now(), s.StartedAt, time.Second)

	_, err = NewSession(0, 0)
	assert.Error(t, err)
}

func TestSessionSlotWraps(t *testing.T) {
	s, err := NewSession(0, 30)
	require.NoError(t, err)

	for _, tc := range []struct {
		index uint64
		slot  int
	}{{0, 0}, {1, 1}, {29, 29}, {30, 0}, {31, 1}, {90, 0}, {1<<63 + 1, int((1<<63 + 1) % 30)}} {
		s.FrameIndex = tc.index
		assert.Equal(t, tc.slot, s.Slot(), "index %d", tc.index)
	}
}

func TestSessionElapsedStopsAtHalt(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	s := Session{StartedAt: start, Halted: true, HaltedAt: start.Add(5 * time.Second)}
	assert.Equal(t, 5*time.Second, s.Elapsed())
}

func TestStateJSON(t *testing.T) {
	s, err := NewSession(3, 4)
	require.NoError(t, err)
	s.State = StatePublished

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"published"`)

	var back Session
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StatePublished, back.State)
	assert.Equal(t, uint64(3), back.FrameIndex)

	var st State
	assert.Error(t, st.UnmarshalText([]byte("sleeping")))
	assert.Equal(t, "state(9)", State(9).String())
}
