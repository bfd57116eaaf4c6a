package api

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zsiec/cloudstream/internal/errors"
	"github.com/zsiec/cloudstream/internal/ply"
	"github.com/zsiec/cloudstream/internal/registry"
	"github.com/zsiec/cloudstream/internal/stream"
)

type staticSession struct{ s stream.Session }

func (f *staticSession) Session() stream.Session { return f.s }

type fixture struct {
	session   *staticSession
	publisher *stream.Publisher
	registry  *registry.MemoryRegistry
	router    *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := stream.NewSession(0, 30)
	require.NoError(t, err)

	f := &fixture{
		session:   &staticSession{s: s},
		publisher: stream.NewPublisher(),
		registry:  registry.NewMemoryRegistry(10),
		router:    mux.NewRouter(),
	}
	NewHandlers(f.session, f.publisher, f.registry, nil, nil).Register(f.router)
	return f
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *fixture) publish(name string, index uint64) *stream.Snapshot {
	snap := &stream.Snapshot{
		Name:  name,
		Index: index,
		Slot:  int(index % 30),
		Cloud: &ply.Cloud{
			Positions: []ply.Position{{1, 2, 3}, {-1, 0.5, 9}},
			Colors:    []ply.Color{{255, 0, 0, 255}, {0, 0, 255, 128}},
		},
		PublishedAt: time.Unix(1700000000, 0).UTC(),
	}
	f.publisher.Publish(snap)
	return snap
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorType {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error.Type
}

func TestHandleSession(t *testing.T) {
	f := newFixture(t)
	f.session.s.FrameIndex = 7
	f.session.s.State = stream.StatePublished

	rec := f.get("/api/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)

	var got stream.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, f.session.s.ID, got.ID)
	assert.Equal(t, uint64(7), got.FrameIndex)
	assert.Equal(t, stream.StatePublished, got.State)
}

func TestHandleLatest(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/api/v1/frames/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.ErrorTypeNoSnapshot, errorType(t, rec))

	f.publish("frame_3", 3)
	rec = f.get("/api/v1/frames/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var got FrameResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "frame_3", got.Name)
	assert.Equal(t, uint64(3), got.Index)
	assert.Equal(t, 2, got.Points)
	assert.Equal(t, ply.Position{-1, 0.5, 3}, got.Min)
	assert.Equal(t, ply.Position{1, 2, 9}, got.Max)
	assert.Equal(t, []ply.Color{{255, 0, 0, 255}, {0, 0, 255, 128}}, got.Colors)
}

func TestHandleLatestHalted(t *testing.T) {
	f := newFixture(t)
	f.session.s.Halted = true
	f.session.s.LastError = "fetch frame_0.ply: status 404"

	rec := f.get("/api/v1/frames/latest.bin")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperrors.ErrorTypeSessionHalted, errorType(t, rec))

	// A halted session keeps serving its last frame.
	f.publish("frame_9", 9)
	rec = f.get("/api/v1/frames/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleLatestPacked(t *testing.T) {
	f := newFixture(t)
	f.publish("frame_4", 4)

	rec := f.get("/api/v1/frames/latest.bin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Point-Count"))
	assert.Equal(t, "16", rec.Header().Get("X-Point-Stride"))
	assert.Equal(t, "frame_4", rec.Header().Get("X-Frame-Name"))
	assert.Equal(t, "4", rec.Header().Get("X-Frame-Index"))

	body := rec.Body.Bytes()
	require.Len(t, body, 2*ply.PackedStride)
	assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(body[16:])))
	assert.Equal(t, uint32(0x80FF0000), binary.LittleEndian.Uint32(body[28:]))
}

func TestHandleHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		snap := f.publish("frame", uint64(i))
		require.NoError(t, f.registry.Record(ctx, registry.EntryFor(f.session.s.ID, snap)))
	}

	rec := f.get("/api/v1/frames/history?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var got HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, f.session.s.ID, got.SessionID)
	require.Len(t, got.Frames, 3)
	assert.Equal(t, uint64(4), got.Frames[0].Index)

	rec = f.get("/api/v1/frames/history")
	require.Equal(t, http.StatusOK, rec.Code)

	for _, bad := range []string{"0", "-2", "abc", "1001"} {
		rec = f.get("/api/v1/frames/history?limit=" + bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Equal(t, apperrors.ErrorTypeValidation, errorType(t, rec))
	}
}

func TestHandleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.get("/api/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty SessionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&empty))
	assert.Equal(t, 0, empty.Count)

	older := f.session.s
	older.StartedAt = older.StartedAt.Add(-time.Hour)
	older.ID = "previous-run"
	older.Halted = true
	require.NoError(t, f.registry.SaveSession(ctx, older))
	require.NoError(t, f.registry.SaveSession(ctx, f.session.s))

	rec = f.get("/api/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var got SessionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Equal(t, 2, got.Count)
	assert.Equal(t, "previous-run", got.Sessions[0].ID)
	assert.Equal(t, f.session.s.ID, got.Sessions[1].ID)
}

func TestHandleGetSession(t *testing.T) {
	f := newFixture(t)
	s := f.session.s
	s.FrameIndex = 42
	require.NoError(t, f.registry.SaveSession(context.Background(), s))

	rec := f.get("/api/v1/sessions/" + s.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got stream.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, uint64(42), got.FrameIndex)

	rec = f.get("/api/v1/sessions/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.ErrorTypeNotFound, errorType(t, rec))
}

func TestHandleSessionLatest(t *testing.T) {
	f := newFixture(t)
	id := f.session.s.ID

	rec := f.get("/api/v1/sessions/" + id + "/frames/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.ErrorTypeNotFound, errorType(t, rec))

	for i := 0; i < 3; i++ {
		snap := f.publish("frame_"+string(rune('0'+i)), uint64(i))
		require.NoError(t, f.registry.Record(context.Background(), registry.EntryFor(id, snap)))
	}

	rec = f.get("/api/v1/sessions/" + id + "/frames/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var got registry.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "frame_2", got.Name)
	assert.Equal(t, uint64(2), got.Index)
	assert.Equal(t, 2, got.Points)
}

func TestWebSocketRouteOptional(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/ws/frames")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	r := mux.NewRouter()
	NewHandlers(f.session, f.publisher, f.registry, stream.NewHub(f.publisher, nil), nil).Register(r)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/frames", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
