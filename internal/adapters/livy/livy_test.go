package livy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/elbow/internal/adapters/livy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLivy serves just enough of the Livy REST API to drive the client.
// A session reports startPolls "starting" answers before becoming idle and
// a statement reports runPolls "running" answers before its result.
type fakeLivy struct {
	mu         sync.Mutex
	startPolls int
	runPolls   int
	finalState livy.SessionState
	output     func(code string) livy.StatementOutput
	sessions   map[int]*fakeSession
	nextID     int
	deleted    []int
	cancelled  []int
	headers    []string
	fail5xx    bool
}

type fakeSession struct {
	polls      int
	statements []*fakeStatement
}

type fakeStatement struct {
	code  string
	polls int
}

func newFake() *fakeLivy {
	return &fakeLivy{
		startPolls: 1,
		runPolls:   1,
		finalState: livy.SessionIdle,
		sessions:   map[int]*fakeSession{},
		output: func(code string) livy.StatementOutput {
			return livy.StatementOutput{Status: "ok", Data: map[string]any{"text/plain": "out:" + code}}
		},
	}
}

func (f *fakeLivy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = append(f.headers, r.Header.Get("X-Requested-By"))

	if f.fail5xx {
		http.Error(w, "boom", http.StatusBadGateway)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	write := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	if len(parts) == 1 && r.Method == http.MethodPost {
		id := f.nextID
		f.nextID++
		f.sessions[id] = &fakeSession{}
		write(livy.Session{ID: id, State: livy.SessionStarting})
		return
	}

	id, _ := strconv.Atoi(parts[1])
	s, ok := f.sessions[id]
	if !ok {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		state := livy.SessionStarting
		if s.polls >= f.startPolls {
			state = f.finalState
		}
		s.polls++
		write(livy.Session{ID: id, State: state})
	case len(parts) == 2 && r.Method == http.MethodDelete:
		delete(f.sessions, id)
		f.deleted = append(f.deleted, id)
		write(map[string]string{"msg": "deleted"})
	case len(parts) == 3 && r.Method == http.MethodPost:
		var body struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.statements = append(s.statements, &fakeStatement{code: body.Code})
		write(livy.Statement{ID: len(s.statements) - 1, Code: body.Code, State: livy.StatementWaiting})
	case len(parts) == 4 && r.Method == http.MethodGet:
		sid, _ := strconv.Atoi(parts[3])
		st := s.statements[sid]
		resp := livy.Statement{ID: sid, Code: st.code, State: livy.StatementRunning}
		if st.polls >= f.runPolls {
			out := f.output(st.code)
			resp.State = livy.StatementAvailable
			resp.Output = &out
		}
		st.polls++
		write(resp)
	case len(parts) == 5 && parts[4] == "cancel":
		sid, _ := strconv.Atoi(parts[3])
		f.cancelled = append(f.cancelled, sid)
		write(map[string]string{"msg": "canceled"})
	default:
		http.NotFound(w, r)
	}
}

func newClient(t *testing.T, f *fakeLivy, opts ...livy.Option) *livy.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	opts = append([]livy.Option{
		livy.WithPollInterval(time.Millisecond),
		livy.WithMaxWait(2 * time.Second),
	}, opts...)
	return livy.New(srv.URL, opts...)
}

func TestHandleLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	c := newClient(t, f)

	h, err := livy.Open(ctx, c, livy.SessionRequest{Kind: "pyspark"})
	require.NoError(t, err)
	assert.Equal(t, 0, h.ID())

	out, err := h.Run(ctx, "print(1)")
	require.NoError(t, err)
	assert.Equal(t, "out:print(1)", out)

	out, err = h.Run(ctx, "print(2)")
	require.NoError(t, err)
	assert.Equal(t, "out:print(2)", out)

	require.NoError(t, h.Close(ctx))
	require.NoError(t, h.Close(ctx), "close is idempotent")

	f.mu.Lock()
	assert.Equal(t, []int{0}, f.deleted)
	assert.Contains(t, f.headers, "elbow")
	f.mu.Unlock()

	_, err = h.Run(ctx, "print(3)")
	assert.ErrorIs(t, err, livy.ErrClosed)
}

func TestOpenDeadSession(t *testing.T) {
	f := newFake()
	f.finalState = livy.SessionDead
	c := newClient(t, f)

	_, err := livy.Open(context.Background(), c, livy.SessionRequest{Kind: "pyspark"})
	require.Error(t, err)
	assert.ErrorIs(t, err, livy.ErrSessionDead)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []int{0}, f.deleted, "failed session is deleted")
}

func TestWaitTimeout(t *testing.T) {
	f := newFake()
	f.startPolls = 1 << 30
	c := newClient(t, f, livy.WithMaxWait(50*time.Millisecond))

	s, err := c.CreateSession(context.Background(), livy.SessionRequest{})
	require.NoError(t, err)
	_, err = c.WaitIdle(context.Background(), s.ID)
	assert.ErrorIs(t, err, livy.ErrTimeout)
}

func TestStatementError(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	f.output = func(string) livy.StatementOutput {
		return livy.StatementOutput{
			Status:    "error",
			EName:     "ValueError",
			EValue:    "bad column",
			Traceback: []string{"line 1"},
		}
	}
	c := newClient(t, f)

	h, err := livy.Open(ctx, c, livy.SessionRequest{})
	require.NoError(t, err)
	defer h.Close(ctx)

	_, err = h.Run(ctx, "boom()")
	var se *livy.StatementError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "ValueError", se.Name)
	assert.Equal(t, "bad column", se.Value)
	assert.Equal(t, []string{"line 1"}, se.Traceback)
}

func TestRunCancelled(t *testing.T) {
	f := newFake()
	f.runPolls = 1 << 30
	c := newClient(t, f)

	h, err := livy.Open(context.Background(), c, livy.SessionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = h.Run(ctx, "sleep()")
	require.Error(t, err)

	f.mu.Lock()
	assert.Equal(t, []int{0}, f.cancelled)
	f.mu.Unlock()
	require.NoError(t, h.Close(context.Background()))
}

func TestRunWaitsForTurnUntilDeadline(t *testing.T) {
	f := newFake()
	f.runPolls = 1 << 30
	c := newClient(t, f)

	h, err := livy.Open(context.Background(), c, livy.SessionRequest{})
	require.NoError(t, err)

	longCtx, stopLong := context.WithCancel(context.Background())
	longDone := make(chan error, 1)
	go func() {
		_, err := h.Run(longCtx, "train()")
		longDone <- err
	}()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.sessions[0].statements) == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = h.Run(ctx, "evaluate()")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	expired, cancelExpired := context.WithCancel(context.Background())
	cancelExpired()
	stopLong()
	require.Error(t, <-longDone)
	_, err = h.Run(expired, "evaluate()")
	assert.ErrorIs(t, err, context.Canceled, "an ended context never takes the session")

	f.mu.Lock()
	assert.Len(t, f.sessions[0].statements, 1, "the waiting statement is never submitted")
	f.mu.Unlock()
	require.NoError(t, h.Close(context.Background()))
}

func TestHTTPErrors(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	c := newClient(t, f, livy.WithBreakerThreshold(2))

	t.Run("not found maps to ErrHTTP", func(t *testing.T) {
		_, err := c.GetSession(ctx, 42)
		assert.ErrorIs(t, err, livy.ErrHTTP)
		var he *livy.HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, http.StatusNotFound, he.Status)
		assert.Equal(t, "closed", c.BreakerState(), "4xx does not trip the breaker")
	})

	t.Run("deleting an unknown session succeeds", func(t *testing.T) {
		assert.NoError(t, c.DeleteSession(ctx, 42))
	})

	t.Run("server errors open the breaker", func(t *testing.T) {
		f.mu.Lock()
		f.fail5xx = true
		f.mu.Unlock()

		for range 2 {
			_, err := c.GetSession(ctx, 0)
			assert.ErrorIs(t, err, livy.ErrHTTP)
		}
		assert.Equal(t, "open", c.BreakerState())

		_, err := c.GetSession(ctx, 0)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, livy.ErrHTTP, "rejected without a request")
	})
}

func TestSessionState(t *testing.T) {
	for _, s := range []livy.SessionState{livy.SessionDead, livy.SessionKilled, livy.SessionError, livy.SessionSuccess, livy.SessionShuttingDown} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []livy.SessionState{livy.SessionNotStarted, livy.SessionStarting, livy.SessionIdle, livy.SessionBusy} {
		assert.False(t, s.Terminal(), s)
	}
	assert.True(t, livy.StatementCancelled.Done())
	assert.False(t, livy.StatementCancelling.Done())
}
