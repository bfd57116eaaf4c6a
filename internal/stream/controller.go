package stream

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zsiec/cloudstream/internal/logger"
	"github.com/zsiec/cloudstream/internal/metrics"
	"github.com/zsiec/cloudstream/internal/ply"
)

// DefaultNamePattern names frame files by index.
const DefaultNamePattern = "frame_%d.ply"

// ControllerConfig wires a Controller to its collaborators.
type ControllerConfig struct {
	Fetcher     Fetcher
	Slots       *SlotStore
	Publisher   *Publisher
	NamePattern string
	// MaxPoints caps the vertex count a frame header may declare. Zero
	// means ply.DefaultMaxVertices.
	MaxPoints int
	Logger    logger.Logger
}

// Controller runs the fetch, persist, parse and publish cycle for one
// frame per Tick. It allows a single cycle in flight at a time.
type Controller struct {
	fetcher   Fetcher
	slots     *SlotStore
	publisher *Publisher
	pattern   string
	maxPoints int
	logger    *logger.SampledLogger
	inFlight  atomic.Bool
	now       func() time.Time
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Fetcher == nil || cfg.Slots == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("controller needs a fetcher, slot store and publisher")
	}
	if cfg.NamePattern == "" {
		cfg.NamePattern = DefaultNamePattern
	}
	if strings.Count(cfg.NamePattern, "%d") != 1 {
		return nil, fmt.Errorf("name pattern %q must contain exactly one %%d", cfg.NamePattern)
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = ply.DefaultMaxVertices
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNullLogger()
	}

	return &Controller{
		fetcher:   cfg.Fetcher,
		slots:     cfg.Slots,
		publisher: cfg.Publisher,
		pattern:   cfg.NamePattern,
		maxPoints: cfg.MaxPoints,
		logger:    logger.NewFrameLogger(cfg.Logger.WithField("component", "stream_controller")),
		now:       time.Now,
	}, nil
}

// FrameName is the file requested for frame index.
func (c *Controller) FrameName(index uint64) string {
	return fmt.Sprintf(c.pattern, index)
}

// SnapshotName is a frame's file name without its extension.
func SnapshotName(frame string) string {
	return strings.TrimSuffix(frame, path.Ext(frame))
}

// Tick runs one cycle against s and returns the session that follows it.
// The frame index advances once the fetch has been attempted, whatever its
// outcome. Any fetch, store or parse error halts the session for good and
// is returned. A cancelled ctx returns s unchanged.
func (c *Controller) Tick(ctx context.Context, s Session) (Session, error) {
	if s.Halted {
		return s, ErrSessionHalted
	}
	if s.Width != c.slots.Width() {
		return s, fmt.Errorf("session rotates over %d slots, store has %d", s.Width, c.slots.Width())
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return s, ErrCycleInFlight
	}
	defer c.inFlight.Store(false)

	index, slot := s.FrameIndex, s.Slot()
	name := c.FrameName(index)
	log := c.logger.WithFrame(name, index, slot)

	next := s
	next.State = StateFetching

	start := c.now()
	data, err := c.fetcher.Fetch(ctx, name)
	if err != nil && ctx.Err() != nil {
		return s, ctx.Err()
	}
	next.FrameIndex++
	next.LastFrame = name
	if err != nil {
		return c.fail(log, next, slot, "fetch", err)
	}
	metrics.RecordFetch(len(data), c.now().Sub(start).Seconds())
	log.DebugWithCategory(logger.CategoryFrameFetch, "Frame fetched",
		map[string]interface{}{"bytes": len(data)})

	next.State = StateParsing
	if err := c.slots.Write(slot, data); err != nil {
		return c.fail(log, next, slot, "store", err)
	}
	next.LastSlot = slot
	log.DebugWithCategory(logger.CategorySlotWrite, "Slot written",
		map[string]interface{}{"path": c.slots.Path(slot)})

	start = c.now()
	cloud, header, err := c.decodeSlot(slot)
	if err != nil {
		return c.fail(log, next, slot, "parse", err)
	}
	metrics.RecordParse(c.now().Sub(start).Seconds())

	snap := &Snapshot{
		Name:        SnapshotName(name),
		Index:       index,
		Slot:        slot,
		Header:      header,
		Cloud:       cloud,
		PublishedAt: c.now(),
	}
	c.publisher.Publish(snap)
	metrics.RecordPublish(snap.Len())
	metrics.SetSessionPosition(next.FrameIndex, slot)

	next.State = StatePublished
	next.Published++
	log.InfoWithCategory(logger.CategoryFramePublish, "Frame published",
		map[string]interface{}{"points": snap.Len()})
	return next, nil
}

func (c *Controller) decodeSlot(slot int) (*ply.Cloud, *ply.Header, error) {
	f, err := c.slots.Open(slot)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ply.DecodeMax(f, c.maxPoints)
}

func (c *Controller) fail(log *logger.SampledLogger, s Session, slot int, stage string, err error) (Session, error) {
	s.State = StateFailed
	s.Halted = true
	s.HaltedAt = c.now()
	s.LastError = err.Error()

	metrics.IncrementFrameError(stage, errorKind(err))
	metrics.SetSessionPosition(s.FrameIndex, slot)
	metrics.SetSessionHalted(true)
	log.WithError(err).WithFields(map[string]interface{}{
		"stage":     stage,
		"published": s.Published,
		"elapsed":   s.HaltedAt.Sub(s.StartedAt).String(),
	}).Error("Streaming session halted")
	return s, err
}

func errorKind(err error) string {
	var fe *FetchError
	var se *StoreError
	switch {
	case errors.Is(err, ErrFrameTooLarge):
		return "frame_too_large"
	case errors.As(err, &fe):
		if fe.Status != 0 {
			return fmt.Sprintf("status_%d", fe.Status)
		}
		return "transport"
	case errors.As(err, &se):
		return "slot_" + se.Op
	default:
		return ply.KindName(err)
	}
}
