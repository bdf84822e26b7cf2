package insights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// scriptedStatus returns states in order, repeating the last one.
type scriptedStatus struct {
	states []ExtractionState
	errAt  int
	calls  int
}

func (s *scriptedStatus) Status(_ context.Context, jobID string) (ExtractionStatus, error) {
	s.calls++
	if s.errAt > 0 && s.calls == s.errAt {
		return ExtractionStatus{}, &TransportError{Operation: "get extraction status", Err: errors.New("connection reset")}
	}
	i := s.calls - 1
	if i >= len(s.states) {
		i = len(s.states) - 1
	}
	return ExtractionStatus{State: s.states[i]}, nil
}

func newTestPoller(getter StatusGetter) (*Poller, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewPoller(getter, WithClock(clock)), clock
}

func TestWaitForCompletion_Succeeds(t *testing.T) {
	getter := &scriptedStatus{states: []ExtractionState{StatePending, StateRunning, StateRunning, StateSucceeded}}
	poller, clock := newTestPoller(getter)

	status, err := poller.WaitForCompletion(context.Background(), "job-1", 5*time.Minute)
	if err != nil {
		t.Fatalf("WaitForCompletion: %v", err)
	}
	if status.State != StateSucceeded {
		t.Errorf("state = %s", status.State)
	}
	if getter.calls != 4 {
		t.Errorf("expected 4 polls, got %d", getter.calls)
	}
	want := []time.Duration{DefaultPollInterval, DefaultPollInterval, DefaultPollInterval}
	if diff := cmp.Diff(want, clock.sleeps); diff != "" {
		t.Errorf("sleeps (-want +got):\n%s", diff)
	}
}

func TestWaitForCompletion_FailedIsTerminal(t *testing.T) {
	getter := &scriptedStatus{states: []ExtractionState{StateQueued, StateFailed}}
	poller, _ := newTestPoller(getter)

	status, err := poller.WaitForCompletion(context.Background(), "job-1", time.Minute)
	if err != nil {
		t.Fatalf("WaitForCompletion: %v", err)
	}
	if status.State != StateFailed || getter.calls != 2 {
		t.Errorf("expected Failed after 2 polls, got %s after %d", status.State, getter.calls)
	}
}

func TestWaitForCompletion_Timeout(t *testing.T) {
	getter := &scriptedStatus{states: []ExtractionState{StateRunning}}
	poller, _ := newTestPoller(getter)

	status, err := poller.WaitForCompletion(context.Background(), "job-1", 25*time.Second)
	if !IsTimeout(err) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if getter.calls != 3 {
		t.Errorf("expected polls at 0s, 10s and 20s, got %d", getter.calls)
	}
	if status.State != StateRunning {
		t.Errorf("expected last observed state Running, got %s", status.State)
	}
	var tErr *TimeoutError
	if errors.As(err, &tErr) && tErr.Elapsed != 30*time.Second {
		t.Errorf("elapsed = %v", tErr.Elapsed)
	}
}

func TestWaitForCompletion_ZeroTimeoutWaits(t *testing.T) {
	states := make([]ExtractionState, 50)
	for i := range states {
		states[i] = StateRunning
	}
	states = append(states, StateSucceeded)
	getter := &scriptedStatus{states: states}
	poller, _ := newTestPoller(getter)

	status, err := poller.WaitForCompletion(context.Background(), "job-1", 0)
	if err != nil || status.State != StateSucceeded {
		t.Fatalf("expected Succeeded, got %s, %v", status.State, err)
	}
}

func TestWaitForCompletion_PollFailureStops(t *testing.T) {
	getter := &scriptedStatus{states: []ExtractionState{StateRunning}, errAt: 2}
	poller, _ := newTestPoller(getter)

	status, err := poller.WaitForCompletion(context.Background(), "job-1", time.Minute)
	var pErr *PollError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PollError, got %v", err)
	}
	if pErr.Attempt != 2 || getter.calls != 2 {
		t.Errorf("expected failure on attempt 2 and no retry, got attempt=%d calls=%d", pErr.Attempt, getter.calls)
	}
	if !IsTransport(err) {
		t.Error("expected the transport cause to be reachable")
	}
	if status.State != StateRunning {
		t.Errorf("expected last good state Running, got %s", status.State)
	}
}

func TestWaitForCompletion_UnknownState(t *testing.T) {
	getter := &scriptedStatus{states: []ExtractionState{"Paused"}}
	poller, _ := newTestPoller(getter)

	_, err := poller.WaitForCompletion(context.Background(), "job-1", time.Minute)
	if !IsInvalidResponse(err) {
		t.Fatalf("expected InvalidResponseError, got %v", err)
	}
	if getter.calls != 1 {
		t.Errorf("expected 1 poll, got %d", getter.calls)
	}
}

func TestWaitForCompletion_ContextCancelled(t *testing.T) {
	getter := &scriptedStatus{states: []ExtractionState{StateRunning}}
	poller, _ := newTestPoller(getter)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := poller.WaitForCompletion(ctx, "job-1", time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtraction_RunAndWait(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/datasources/iModels/im-1/extraction/run":
			if r.ContentLength > 0 {
				t.Errorf("run must not send a body")
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"run": {"id": "job-7"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/datasources/iModels/im-1/extraction/status/job-7":
			polls++
			state := StateRunning
			if polls == 2 {
				state = StateSucceeded
			}
			json.NewEncoder(w).Encode(map[string]any{"status": ExtractionStatus{State: state, Reason: "ok"}})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	extraction := newTestClient(t, server).Extraction("im-1")
	run, err := extraction.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.ID != "job-7" {
		t.Fatalf("run id = %q", run.ID)
	}

	status, err := extraction.Wait(context.Background(), run.ID, time.Minute,
		WithPollInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status.State != StateSucceeded || polls != 2 {
		t.Errorf("expected Succeeded after 2 polls, got %s after %d", status.State, polls)
	}
}

func TestExtraction_RunWithoutID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"run": {}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Extraction("im").Run(context.Background())
	if !IsInvalidResponse(err) || !strings.Contains(err.Error(), "no id") {
		t.Errorf("expected missing-id error, got %v", err)
	}
}

func TestExtraction_RunUnknownEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job": {"id": "x"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Extraction("im").Run(context.Background())
	if !IsInvalidResponse(err) {
		t.Fatalf("expected invalid response, got %v", err)
	}
	if got := err.Error(); got != "run extraction: invalid response: no recognized entity key" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestExtractionState(t *testing.T) {
	tests := []struct {
		state                     ExtractionState
		terminal, inProgress, ok bool
	}{
		{StateQueued, false, true, true},
		{StatePending, false, true, true},
		{StateRunning, false, true, true},
		{StateSucceeded, true, false, true},
		{StateFailed, true, false, true},
		{"Cancelled", false, false, false},
	}
	for _, tt := range tests {
		if tt.state.Terminal() != tt.terminal || tt.state.InProgress() != tt.inProgress || tt.state.Known() != tt.ok {
			t.Errorf("%s: terminal=%v inProgress=%v known=%v", tt.state,
				tt.state.Terminal(), tt.state.InProgress(), tt.state.Known())
		}
	}
}
