package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu         sync.Mutex
	calls      []string
	submitGate chan struct{}
	submitResp *SubmitResponse
	submitErr  error
	reports    []*StatusReport
	statusErr  error
}

func (b *fakeBackend) Submit(ctx context.Context, req JobRequest) (*SubmitResponse, error) {
	if b.submitGate != nil {
		<-b.submitGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "submit:"+req.SourceURL)
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	return b.submitResp, nil
}

func (b *fakeBackend) Status(ctx context.Context, requestID string) (*StatusReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "status:"+requestID)
	if b.statusErr != nil {
		return nil, b.statusErr
	}
	if len(b.reports) == 0 {
		return &StatusReport{Status: "running", Progress: "still going"}, nil
	}
	r := b.reports[0]
	b.reports = b.reports[1:]
	return r, nil
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

type recordingRenderer struct {
	mu     sync.Mutex
	states []UIState
	alerts []string
}

func (r *recordingRenderer) Render(s UIState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingRenderer) Alert(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, msg)
}

func (r *recordingRenderer) States() []UIState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]UIState(nil), r.states...)
}

func (r *recordingRenderer) Alerts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.alerts...)
}

// fakeClock fires every timer immediately and advances its own time by the delay.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// stalledClock never fires.
type stalledClock struct{ *fakeClock }

func (c *stalledClock) After(d time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(b Backend, r Renderer, c Clock, opts ...Option) *Monitor {
	opts = append([]Option{WithClock(c), WithLogger(quietLogger())}, opts...)
	return New(b, r, opts...)
}

func TestMonitor_RunSuccessAfterTwoProgressReports(t *testing.T) {
	backend := &fakeBackend{
		submitResp: &SubmitResponse{RequestID: "abc"},
		reports: []*StatusReport{
			{Status: "running", Progress: "10%"},
			{Status: "running", Progress: "50%"},
			{Status: "success", Filename: "out.mp3", OutputPath: "/files/out.mp3"},
		},
	}
	renderer := &recordingRenderer{}
	clock := newFakeClock()
	m := newTestMonitor(backend, renderer, clock)

	state, err := m.Run(context.Background(), "https://youtu.be/x")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Waits())
	assert.Equal(t, []string{"submit:https://youtu.be/x", "status:abc", "status:abc", "status:abc"}, backend.Calls())

	assert.False(t, state.Busy)
	assert.Equal(t, ClassSuccess, state.MessageClass)
	assert.Contains(t, state.MessageText, "out.mp3")
	assert.Contains(t, state.DownloadLinkHTML, `href="/files/out.mp3"`)
	assert.Contains(t, state.DownloadLinkHTML, `download="out.mp3"`)
	assert.Equal(t, "/files/out.mp3", state.DownloadURL)

	_, polling := m.Handle()
	assert.False(t, polling)

	states := renderer.States()
	require.Len(t, states, 4)
	assert.Equal(t, "Elapsed time: 0.00 seconds. Current status: running. Progress: 10%", states[1].MessageText)
	assert.Equal(t, "Elapsed time: 1.00 seconds. Current status: running. Progress: 50%", states[2].MessageText)
}

func TestMonitor_BusyOnlyBetweenSubmitAndTerminalOutcome(t *testing.T) {
	backend := &fakeBackend{
		submitResp: &SubmitResponse{RequestID: "abc"},
		reports: []*StatusReport{
			{Status: "pending", Progress: "Queuing your request"},
			{Status: "error", ErrorMessage: "boom"},
		},
	}
	renderer := &recordingRenderer{}
	m := newTestMonitor(backend, renderer, newFakeClock())

	assert.False(t, m.Busy())
	_, err := m.Run(context.Background(), "u")
	require.NoError(t, err)
	assert.False(t, m.Busy())

	states := renderer.States()
	require.NotEmpty(t, states)
	for _, s := range states[:len(states)-1] {
		assert.True(t, s.Busy, "state before terminal outcome must be busy: %+v", s)
		assert.Equal(t, CaptionBusy, s.SubmitCaption())
	}
	last := states[len(states)-1]
	assert.False(t, last.Busy)
	assert.Equal(t, CaptionIdle, last.SubmitCaption())
}

func TestMonitor_JobReportedError(t *testing.T) {
	backend := &fakeBackend{
		submitResp: &SubmitResponse{RequestID: "abc"},
		reports:    []*StatusReport{{Status: "error", ErrorMessage: "ffmpeg failed"}},
	}
	clock := newFakeClock()
	m := newTestMonitor(backend, nil, clock)

	state, err := m.Run(context.Background(), "u")
	require.NoError(t, err)

	assert.Contains(t, state.MessageText, "ffmpeg failed")
	assert.Equal(t, ClassError, state.MessageClass)
	assert.False(t, state.Busy)
	assert.Empty(t, clock.Waits())
	assert.Equal(t, []string{"submit:u", "status:abc"}, backend.Calls())
}

func TestMonitor_RejectedSubmission(t *testing.T) {
	backend := &fakeBackend{submitResp: &SubmitResponse{Error: "invalid url"}}
	m := newTestMonitor(backend, nil, newFakeClock())

	state, err := m.Run(context.Background(), "nope")
	require.NoError(t, err)

	assert.Equal(t, "Error: invalid url", state.MessageText)
	assert.Equal(t, ClassError, state.MessageClass)
	assert.False(t, state.Busy)
	assert.Equal(t, []string{"submit:nope"}, backend.Calls())
}

func TestMonitor_SubmissionTransportFailure(t *testing.T) {
	backend := &fakeBackend{submitErr: errors.New("connection refused")}
	m := newTestMonitor(backend, nil, newFakeClock())

	state, err := m.Run(context.Background(), "u")
	require.NoError(t, err)

	assert.Equal(t, MsgUnableToProcess, state.MessageText)
	assert.Equal(t, ClassError, state.MessageClass)
	assert.False(t, state.Busy)
	assert.Equal(t, []string{"submit:u"}, backend.Calls())
}

func TestMonitor_SubmissionWithoutRequestID(t *testing.T) {
	backend := &fakeBackend{submitResp: &SubmitResponse{}}
	m := newTestMonitor(backend, nil, newFakeClock())

	state, err := m.Run(context.Background(), "u")
	require.NoError(t, err)

	assert.Equal(t, MsgUnableToProcess, state.MessageText)
	assert.Equal(t, []string{"submit:u"}, backend.Calls())
}

func TestMonitor_PollingTransportFailureDoesNotRetry(t *testing.T) {
	backend := &fakeBackend{
		submitResp: &SubmitResponse{RequestID: "abc"},
		statusErr:  errors.New("EOF"),
	}
	clock := newFakeClock()
	m := newTestMonitor(backend, nil, clock)

	state, err := m.Run(context.Background(), "u")
	require.NoError(t, err)

	assert.Equal(t, MsgUnableToCheck, state.MessageText)
	assert.Equal(t, ClassError, state.MessageClass)
	assert.False(t, state.Busy)
	assert.Empty(t, clock.Waits())
	assert.Equal(t, []string{"submit:u", "status:abc"}, backend.Calls())
}

func TestMonitor_SubmitWhileBusyIsRejected(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{
		submitGate: gate,
		submitResp: &SubmitResponse{RequestID: "abc"},
		reports:    []*StatusReport{{Status: "success", Filename: "a.wav", OutputPath: "/a.wav"}},
	}
	renderer := &recordingRenderer{}
	m := newTestMonitor(backend, renderer, newFakeClock())

	ctx := context.Background()
	require.NoError(t, m.Submit(ctx, "first"))
	assert.True(t, m.Busy())

	err := m.Submit(ctx, "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, []string{MsgMustWait}, renderer.Alerts())

	close(gate)
	require.NoError(t, m.Wait(ctx))

	assert.Equal(t, []string{"submit:first", "status:abc"}, backend.Calls())
	assert.Equal(t, ClassSuccess, m.State().MessageClass)
}

func TestMonitor_NewSubmissionClearsPreviousResult(t *testing.T) {
	backend := &fakeBackend{
		submitResp: &SubmitResponse{RequestID: "abc"},
		reports:    []*StatusReport{{Status: "success", Filename: "a.wav", OutputPath: "/a.wav"}},
	}
	renderer := &recordingRenderer{}
	m := newTestMonitor(backend, renderer, newFakeClock())

	ctx := context.Background()
	first, err := m.Run(ctx, "first")
	require.NoError(t, err)
	require.True(t, first.HasDownload())

	gate := make(chan struct{})
	backend.mu.Lock()
	backend.submitGate = gate
	backend.submitErr = errors.New("offline")
	backend.mu.Unlock()

	require.NoError(t, m.Submit(ctx, "second"))
	assert.Equal(t, UIState{Busy: true}, m.State())
	assert.Len(t, backend.Calls(), 2, "no network call may happen before the reset")

	close(gate)
	require.NoError(t, m.Wait(ctx))
	assert.Equal(t, MsgUnableToProcess, m.State().MessageText)
	assert.False(t, m.State().HasDownload())
}

func TestMonitor_CancelAbandonsPolling(t *testing.T) {
	backend := &fakeBackend{submitResp: &SubmitResponse{RequestID: "abc"}}
	renderer := &recordingRenderer{}
	clock := &stalledClock{fakeClock: newFakeClock()}
	m := newTestMonitor(backend, renderer, clock)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Submit(ctx, "u"))

	require.Eventually(t, func() bool {
		_, ok := m.Handle()
		return ok && len(backend.Calls()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, m.Wait(context.Background()))

	state := m.State()
	assert.False(t, state.Busy)
	assert.NotEqual(t, ClassError, state.MessageClass)
	_, ok := m.Handle()
	assert.False(t, ok)
	assert.Equal(t, []string{"submit:u", "status:abc"}, backend.Calls())
}

func TestMonitor_PollTimeout(t *testing.T) {
	backend := &fakeBackend{submitResp: &SubmitResponse{RequestID: "abc"}}
	clock := newFakeClock()
	m := newTestMonitor(backend, nil, clock, WithPollTimeout(2500*time.Millisecond))

	state, err := m.Run(context.Background(), "u")
	require.NoError(t, err)

	assert.Equal(t, "Error: Gave up waiting after 2.5s.", state.MessageText)
	assert.Equal(t, ClassError, state.MessageClass)
	assert.False(t, state.Busy)
	assert.Len(t, clock.Waits(), 3)
}

func TestMonitor_WaitWhenIdle(t *testing.T) {
	m := New(&fakeBackend{}, nil)
	assert.NoError(t, m.Wait(context.Background()))
	assert.Equal(t, UIState{}, m.State())
}
