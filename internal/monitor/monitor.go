// Package monitor submits a vocal-removal job to the backend and follows it
// until it reaches a terminal status, keeping a UIState that a renderer draws.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is the delay between a poll response and the next poll.
const DefaultPollInterval = 1000 * time.Millisecond

// ErrBusy is returned by Submit while a job is in flight.
var ErrBusy = errors.New("monitor: a job is already in progress")

// Backend is the job processor the monitor talks to.
type Backend interface {
	Submit(ctx context.Context, req JobRequest) (*SubmitResponse, error)
	Status(ctx context.Context, requestID string) (*StatusReport, error)
}

// Renderer applies UIState to a presentation layer.
// Render is called with the monitor lock held and must not call back into the Monitor.
type Renderer interface {
	Render(state UIState)
	Alert(message string)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithPollTimeout gives up on a job that has not finished after d.
// Zero, the default, polls until the job is terminal.
func WithPollTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.pollTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// Monitor owns the lifecycle of at most one job at a time.
type Monitor struct {
	backend     Backend
	renderer    Renderer
	clock       Clock
	interval    time.Duration
	pollTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	state  UIState
	handle *JobHandle
	done   chan struct{}
}

// New creates a Monitor. A nil renderer discards all output.
func New(backend Backend, renderer Renderer, opts ...Option) *Monitor {
	if renderer == nil {
		renderer = nopRenderer{}
	}
	done := make(chan struct{})
	close(done)

	m := &Monitor{
		backend:  backend,
		renderer: renderer,
		clock:    realClock{},
		interval: DefaultPollInterval,
		logger:   slog.Default(),
		done:     done,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the current UI state.
func (m *Monitor) State() UIState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Busy reports whether a job is in flight.
func (m *Monitor) Busy() bool {
	return m.State().Busy
}

// Handle returns the handle of the job being polled, if any.
func (m *Monitor) Handle() (JobHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return JobHandle{}, false
	}
	return *m.handle, true
}

// Submit starts a new job for sourceURL and returns once the request is on its way.
// The lifecycle continues in the background until a terminal outcome or ctx is done.
func (m *Monitor) Submit(ctx context.Context, sourceURL string) error {
	m.mu.Lock()
	if m.state.Busy {
		m.mu.Unlock()
		m.renderer.Alert(MsgMustWait)
		return ErrBusy
	}

	startedAt := m.clock.Now()
	m.state = UIState{Busy: true}
	m.done = make(chan struct{})
	done := m.done
	m.renderer.Render(m.state)
	m.mu.Unlock()

	go m.run(ctx, JobRequest{SourceURL: sourceURL}, startedAt, done)
	return nil
}

// Wait blocks until the current job, if any, has finished.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run submits sourceURL and waits for the job to finish.
func (m *Monitor) Run(ctx context.Context, sourceURL string) (UIState, error) {
	if err := m.Submit(ctx, sourceURL); err != nil {
		return m.State(), err
	}
	if err := m.Wait(ctx); err != nil {
		return m.State(), err
	}
	return m.State(), nil
}

func (m *Monitor) run(ctx context.Context, req JobRequest, startedAt time.Time, done chan struct{}) {
	defer close(done)

	resp, err := m.backend.Submit(ctx, req)
	if err != nil {
		if m.abandoned(ctx) {
			return
		}
		m.logger.Error("submission failed", "url", req.SourceURL, "error", err)
		m.finish(failed(MsgUnableToProcess))
		return
	}
	if resp.Error != "" {
		m.logger.Warn("submission rejected", "url", req.SourceURL, "reason", resp.Error)
		m.finish(failed(rejectedMessage(resp.Error)))
		return
	}
	if resp.RequestID == "" {
		m.logger.Error("submission response has no request id", "url", req.SourceURL)
		m.finish(failed(MsgUnableToProcess))
		return
	}

	handle := JobHandle{RequestID: resp.RequestID, StartedAt: startedAt}
	m.mu.Lock()
	m.handle = &handle
	m.mu.Unlock()
	m.logger.Info("job accepted", "request_id", handle.RequestID)

	for {
		if m.pollOnce(ctx, handle) {
			return
		}
		if m.pollTimeout > 0 && m.clock.Now().Sub(handle.StartedAt) >= m.pollTimeout {
			m.logger.Warn("gave up polling", "request_id", handle.RequestID, "timeout", m.pollTimeout)
			m.finish(failed(fmt.Sprintf(MsgPollTimeoutFormat, m.pollTimeout)))
			return
		}

		select {
		case <-ctx.Done():
			m.abandon()
			return
		case <-m.clock.After(m.interval):
		}
	}
}

// pollOnce queries the job once and applies the report.
// It returns true when polling must stop.
func (m *Monitor) pollOnce(ctx context.Context, handle JobHandle) bool {
	report, err := m.backend.Status(ctx, handle.RequestID)
	if err != nil {
		if m.abandoned(ctx) {
			return true
		}
		m.logger.Error("status check failed", "request_id", handle.RequestID, "error", err)
		m.finish(failed(MsgUnableToCheck))
		return true
	}

	elapsed := m.clock.Now().Sub(handle.StartedAt)
	m.logger.Debug("status", "request_id", handle.RequestID, "status", report.Status, "progress", report.Progress)

	m.mu.Lock()
	defer m.mu.Unlock()

	next, terminal, err := transition(m.state, report, elapsed)
	if err != nil {
		m.logger.Error("failed to render result", "request_id", handle.RequestID, "error", err)
		next, terminal = failed(MsgUnableToCheck), true
	}
	if terminal {
		next.Busy = false
		m.handle = nil
		m.logger.Info("job finished", "request_id", handle.RequestID, "status", report.Status, "elapsed", elapsed)
	}
	m.state = next
	m.renderer.Render(next)
	return terminal
}

func (m *Monitor) finish(next UIState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next.Busy = false
	m.state = next
	m.handle = nil
	m.renderer.Render(next)
}

func (m *Monitor) abandoned(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	m.abandon()
	return true
}

// abandon releases the job without reporting an outcome.
func (m *Monitor) abandon() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil {
		m.logger.Info("polling abandoned", "request_id", m.handle.RequestID)
	}
	m.handle = nil
	m.state.Busy = false
	m.renderer.Render(m.state)
}

type nopRenderer struct{}

func (nopRenderer) Render(UIState) {}
func (nopRenderer) Alert(string)   {}
