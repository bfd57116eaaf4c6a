package stream

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/cloudstream/internal/ply"
)

// frameBytes encodes a cloud of n points whose x coordinate is seed.
func frameBytes(t *testing.T, seed float32, n int) []byte {
	t.Helper()
	c := &ply.Cloud{}
	for i := 0; i < n; i++ {
		c.Positions = append(c.Positions, ply.Position{seed, float32(i), 0})
		c.Colors = append(c.Colors, ply.Color{uint8(i), 0, 0, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, ply.Encode(&buf, c))
	return buf.Bytes()
}

// fakeFetcher serves frames from a map and fails on anything else.
type fakeFetcher struct {
	mu     sync.Mutex
	frames map[string][]byte
	calls  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{frames: make(map[string][]byte)}
}

func (f *fakeFetcher) set(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[name] = data
}

func (f *fakeFetcher) Fetch(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	data, ok := f.frames[name]
	if !ok {
		return nil, &FetchError{Name: name, Status: 404}
	}
	return data, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type testRig struct {
	fs        afero.Fs
	fetcher   *fakeFetcher
	slots     *SlotStore
	publisher *Publisher
	ctrl      *Controller
}

func newTestRig(t *testing.T, width int) *testRig {
	t.Helper()
	fs := afero.NewMemMapFs()
	slots, err := NewSlotStore(fs, "/slots", "frame_%d.ply", width)
	require.NoError(t, err)

	rig := &testRig{fs: fs, fetcher: newFakeFetcher(), slots: slots, publisher: NewPublisher()}
	rig.ctrl, err = NewController(ControllerConfig{
		Fetcher:   rig.fetcher,
		Slots:     slots,
		Publisher: rig.publisher,
	})
	require.NoError(t, err)
	return rig
}

func (r *testRig) serveFrames(t *testing.T, from, to int) {
	t.Helper()
	for i := from; i < to; i++ {
		r.fetcher.set(fmt.Sprintf("frame_%d.ply", i), frameBytes(t, float32(i), i%5+1))
	}
}
