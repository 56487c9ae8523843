package frame

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	ferrors "github.com/jvaltonen/facewatch-go/internal/errors"
	"github.com/jvaltonen/facewatch-go/internal/logging"
)

// State of the frame source connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// ReconnectBackoff is the fixed wait between reconnect attempts.
const ReconnectBackoff = 2 * time.Second

// ErrNoSource is returned when no frame source can be opened at startup.
// It halts the producer task; the read-only query surface keeps serving.
var ErrNoSource = ferrors.NewStd("no frame source could be opened")

// Handler consumes frames on the producer goroutine.
type Handler func(*Frame)

// Manager owns the frame source connection for the lifetime of the producer
// task. On read errors it closes the handle, waits the fixed backoff and
// reopens indefinitely; the pipeline never terminates on stream failure.
// The fallback device is consulted on the initial open only, matching the
// one-shot local-camera fallback of the capture policy.
type Manager struct {
	primary  Opener
	fallback Opener // optional, nil when no device fallback is configured

	backoff      time.Duration
	stallTimeout time.Duration
	state        atomic.Int32
	log          *slog.Logger

	// sleep waits between attempts, injectable so tests don't need real
	// wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error

	// OnReconnect is called once per reconnect attempt, for metrics.
	OnReconnect func()
}

// NewManager creates a Manager for the given openers. fallback may be nil.
func NewManager(primary, fallback Opener, stallTimeout time.Duration) *Manager {
	return &Manager{
		primary:      primary,
		fallback:     fallback,
		backoff:      ReconnectBackoff,
		stallTimeout: stallTimeout,
		log:          logging.ForService("frame-source"),
		sleep:        sleepCtx,
	}
}

// SetSleeper overrides the inter-attempt wait. Test use only.
func (m *Manager) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	m.sleep = sleep
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// Run is the producer loop. It opens a source, feeds every frame to handle
// and reconnects on failure until ctx is cancelled. The only error returns
// are ctx.Err() on cancellation and ErrNoSource when the initial open of
// both the primary and the fallback fails.
func (m *Manager) Run(ctx context.Context, handle Handler) error {
	active, src, err := m.initialOpen(ctx)
	if err != nil {
		return err
	}

	for {
		err := m.stream(ctx, src, handle)
		_ = src.Close()
		m.setState(StateDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Warn("lost connection or empty frame, retrying",
			"source", active.Name(), "backoff", m.backoff, "error", err)

		src, err = m.reopen(ctx, active)
		if err != nil {
			return err // only on cancellation
		}
	}
}

// initialOpen connects to the primary source, falling back to the local
// device exactly once. Total failure here is the one unrecoverable startup
// condition.
func (m *Manager) initialOpen(ctx context.Context) (Opener, Source, error) {
	m.setState(StateConnecting)

	src, err := m.primary.Open(ctx)
	if err == nil {
		m.log.Info("video stream connected", "source", m.primary.Name())
		m.setState(StateStreaming)
		return m.primary, src, nil
	}
	m.log.Error("could not open video stream", "source", m.primary.Name(), "error", err)

	if m.fallback == nil {
		m.setState(StateDisconnected)
		return nil, nil, ErrNoSource
	}

	m.log.Info("trying local camera fallback", "device", m.fallback.Name())
	src, err = m.fallback.Open(ctx)
	if err != nil {
		m.log.Error("local camera fallback also failed", "device", m.fallback.Name(), "error", err)
		m.setState(StateDisconnected)
		return nil, nil, ErrNoSource
	}

	m.log.Info("using local camera as fallback", "device", m.fallback.Name())
	m.setState(StateStreaming)
	return m.fallback, src, nil
}

// reopen retries the active opener with the fixed backoff until it succeeds
// or the context ends.
func (m *Manager) reopen(ctx context.Context, active Opener) (Source, error) {
	for {
		if err := m.sleep(ctx, m.backoff); err != nil {
			return nil, err
		}

		m.setState(StateConnecting)
		if m.OnReconnect != nil {
			m.OnReconnect()
		}
		src, err := active.Open(ctx)
		if err == nil {
			m.log.Info("video stream reconnected", "source", active.Name())
			m.setState(StateStreaming)
			return src, nil
		}

		m.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.log.Warn("reconnection failed, keeping connection attempt open",
			"source", active.Name(), "error", err)
	}
}

// stream reads frames until the source errors or the context ends.
// Malformed frames skip the cycle with a warning but keep the connection;
// every other error surfaces to the reconnect path. A stall longer than the
// watchdog threshold counts as a connection failure.
func (m *Manager) stream(ctx context.Context, src Source, handle Handler) error {
	for {
		frameCtx := ctx
		cancel := context.CancelFunc(func() {})
		if m.stallTimeout > 0 {
			frameCtx, cancel = context.WithTimeout(ctx, m.stallTimeout)
		}

		f, err := src.NextFrame(frameCtx)
		cancel()

		switch {
		case err == nil:
			handle(f)
		case ferrors.Is(err, ErrMalformedFrame):
			// No frame is dropped silently.
			m.log.Warn("malformed frame, skipping processing", "error", err)
		default:
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
