// Package livy is a client for the Apache Livy REST API: interactive
// sessions and the statements run in them.
package livy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/okian/elbow/pkg/logger"
	"github.com/okian/elbow/pkg/metrics"
)

const (
	defaultPollInterval    = time.Second
	defaultMaxWait         = 10 * time.Minute
	defaultBreakerTrips    = 5
	defaultBreakerCooldown = 30 * time.Second
	maxPollInterval        = 15 * time.Second
	maxErrorBody           = 4 << 10
)

var errPending = errors.New("pending")

// Client talks to one Livy server.
type Client struct {
	base            string
	http            *http.Client
	pollInterval    time.Duration
	maxWait         time.Duration
	breakerTrips    uint32
	breakerCooldown time.Duration
	requestedBy     string
	log             logger.Logger
	breaker         *gobreaker.CircuitBreaker[[]byte]
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:            strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: time.Minute},
		pollInterval:    defaultPollInterval,
		maxWait:         defaultMaxWait,
		breakerTrips:    defaultBreakerTrips,
		breakerCooldown: defaultBreakerCooldown,
		requestedBy:     "elbow",
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "livy",
		Timeout: c.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerTrips
		},
		// Client errors are answers, not outages.
		IsSuccessful: func(err error) bool {
			var he *HTTPError
			if errors.As(err, &he) {
				return he.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			_ = metrics.UpdateLivyBreakerState(to.String())
			c.log.Warn(context.Background(), "livy circuit breaker state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	_ = metrics.UpdateLivyBreakerState(gobreaker.StateClosed.String())
	return c
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// do sends one request through the breaker and decodes the answer into out.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var rd io.Reader
		if in != nil {
			b, err := json.Marshal(in)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", op, err)
			}
			rd = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.requestedBy != "" {
			req.Header.Set("X-Requested-By", c.requestedBy)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &HTTPError{Op: op, Status: resp.StatusCode, Body: string(msg)}
		}
		return io.ReadAll(resp.Body)
	})
	metrics.RecordLivyRequest(op, requestStatus(err), float64(time.Since(start).Milliseconds()))
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("livy %s: %w", op, err)
		}
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

func requestStatus(err error) string {
	var he *HTTPError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &he):
		return strconv.Itoa(he.Status)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	}
	return "error"
}

// CreateSession starts a new interactive session.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var s Session
	if err := c.do(ctx, "create_session", http.MethodPost, "/sessions", req, &s); err != nil {
		return nil, err
	}
	c.log.Info(ctx, "livy session created",
		logger.Int("session", s.ID),
		logger.String("state", string(s.State)),
	)
	return &s, nil
}

// GetSession fetches a session.
func (c *Client) GetSession(ctx context.Context, id int) (*Session, error) {
	var s Session
	if err := c.do(ctx, "get_session", http.MethodGet, sessionPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession kills a session. Deleting an unknown session succeeds.
func (c *Client) DeleteSession(ctx context.Context, id int) error {
	err := c.do(ctx, "delete_session", http.MethodDelete, sessionPath(id), nil, nil)
	var he *HTTPError
	if errors.As(err, &he) && he.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// WaitIdle polls until the session is idle.
func (c *Client) WaitIdle(ctx context.Context, id int) (*Session, error) {
	var s *Session
	err := c.poll(ctx, func(ctx context.Context) error {
		got, err := c.GetSession(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		s = got
		switch {
		case got.State == SessionIdle:
			return nil
		case got.State.Terminal():
			return backoff.Permanent(fmt.Errorf("%w: session %d is %s", ErrSessionDead, id, got.State))
		}
		return errPending
	})
	if err != nil {
		return s, fmt.Errorf("wait for session %d: %w", id, err)
	}
	return s, nil
}

// SubmitStatement queues code in a session.
func (c *Client) SubmitStatement(ctx context.Context, sessionID int, code string) (*Statement, error) {
	var st Statement
	path := sessionPath(sessionID) + "/statements"
	if err := c.do(ctx, "submit_statement", http.MethodPost, path, statementRequest{Code: code}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetStatement fetches a statement.
func (c *Client) GetStatement(ctx context.Context, sessionID, statementID int) (*Statement, error) {
	var st Statement
	if err := c.do(ctx, "get_statement", http.MethodGet, statementPath(sessionID, statementID), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// CancelStatement asks the server to interrupt a statement.
func (c *Client) CancelStatement(ctx context.Context, sessionID, statementID int) error {
	return c.do(ctx, "cancel_statement", http.MethodPost, statementPath(sessionID, statementID)+"/cancel", nil, nil)
}

// WaitStatement polls until the statement is done. A statement that raised
// returns a *StatementError alongside the statement.
func (c *Client) WaitStatement(ctx context.Context, sessionID, statementID int) (*Statement, error) {
	var st *Statement
	err := c.poll(ctx, func(ctx context.Context) error {
		got, err := c.GetStatement(ctx, sessionID, statementID)
		if err != nil {
			return backoff.Permanent(err)
		}
		st = got
		if !got.State.Done() {
			return errPending
		}
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("wait for statement %d/%d: %w", sessionID, statementID, err)
	}

	switch st.State {
	case StatementCancelled:
		return st, fmt.Errorf("statement %d/%d: %w", sessionID, statementID, ErrCancelled)
	case StatementFailed:
		if err := st.Output.err(); err != nil {
			return st, err
		}
		return st, &StatementError{Name: "StatementError", Value: "statement failed without output"}
	}
	if err := st.Output.err(); err != nil {
		return st, err
	}
	return st, nil
}

// poll retries check with exponential backoff until it returns nil or a
// permanent error, or maxWait elapses.
func (c *Client) poll(ctx context.Context, check func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = max(c.pollInterval, maxPollInterval)
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error { return check(wctx) }, backoff.WithContext(b, wctx))
	if err != nil && ctx.Err() == nil && wctx.Err() != nil {
		return fmt.Errorf("%w after %s", ErrTimeout, c.maxWait)
	}
	return err
}

func sessionPath(id int) string {
	return "/sessions/" + strconv.Itoa(id)
}

func statementPath(sessionID, statementID int) string {
	return sessionPath(sessionID) + "/statements/" + strconv.Itoa(statementID)
}
