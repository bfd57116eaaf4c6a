package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countLines(buf *bytes.Buffer) int {
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		n++
	}
	return n
}

func TestSampledLogger_BurstThenDrop(t *testing.T) {
	base, buf := newBufferLogger()
	s := NewSampledLogger(base).WithSampler("hot", time.Hour, 3)

	for i := 0; i < 10; i++ {
		s.InfoWithCategory("hot", "tick", nil)
	}
	assert.Equal(t, 3, countLines(buf))

	stats := s.Stats()["hot"]
	assert.EqualValues(t, 10, stats.Total)
	assert.EqualValues(t, 3, stats.Logged)
	assert.EqualValues(t, 7, stats.Dropped)
	assert.InDelta(t, 0.3, stats.Rate, 1e-9)
}

func TestSampledLogger_UnknownCategoryAlwaysLogs(t *testing.T) {
	base, buf := newBufferLogger()
	s := NewSampledLogger(base)

	for i := 0; i < 5; i++ {
		s.DebugWithCategory("cold", "tick", map[string]interface{}{"i": i})
	}
	assert.Equal(t, 5, countLines(buf))
	assert.Empty(t, s.Stats())
}

func TestSampledLogger_ErrorsBypassSampling(t *testing.T) {
	base, buf := newBufferLogger()
	s := NewSampledLogger(base).WithSampler(CategoryFrameFetch, time.Hour, 1)

	for i := 0; i < 4; i++ {
		s.ErrorWithCategory(CategoryFrameFetch, "fetch failed", nil)
	}
	assert.Equal(t, 4, countLines(buf))
}

func TestSampledLogger_ReportsDropped(t *testing.T) {
	base, buf := newBufferLogger()
	s := NewSampledLogger(base).WithSampler("hot", 20*time.Millisecond, 1)

	s.WarnWithCategory("hot", "first", nil)
	s.WarnWithCategory("hot", "dropped", nil)
	time.Sleep(40 * time.Millisecond)
	buf.Reset()
	s.WarnWithCategory("hot", "second", nil)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "second", line["msg"])
	assert.Equal(t, "hot", line["category"])
	assert.EqualValues(t, 1, line["sampled_dropped"])
}

func TestSampledLogger_DerivedSharesSamplers(t *testing.T) {
	base, buf := newBufferLogger()
	s := NewFrameLogger(base)

	child := s.WithField("frame", "frame_1.ply").(*SampledLogger)
	for i := 0; i < 10; i++ {
		child.InfoWithCategory(CategorySlotWrite, "slot written", nil)
	}
	assert.Equal(t, 2, countLines(buf))
	assert.EqualValues(t, 10, s.Stats()[CategorySlotWrite].Total)
}

func TestSampledLogger_WithFrameSharesSamplers(t *testing.T) {
	base, buf := newBufferLogger()
	s := NewSampledLogger(base).WithSampler(CategoryFramePublish, time.Hour, 2)

	for i := 0; i < 4; i++ {
		s.WithFrame("frame_9.ply", 9, 4).InfoWithCategory(CategoryFramePublish, "Frame published",
			map[string]interface{}{"points": 12})
	}
	assert.Equal(t, 2, countLines(buf))
	assert.EqualValues(t, 4, s.Stats()[CategoryFramePublish].Total)

	var line map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	require.True(t, sc.Scan())
	require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
	assert.Equal(t, "frame_9.ply", line["frame"])
	assert.EqualValues(t, 9, line["frame_index"])
	assert.EqualValues(t, 4, line["slot"])
	assert.EqualValues(t, 12, line["points"])
	assert.Equal(t, CategoryFramePublish, line["category"])
}
