package livy

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/elbow/pkg/logger"
	"github.com/okian/elbow/pkg/metrics"
)

const cancelTimeout = 10 * time.Second

// Handle owns one interactive session from creation to deletion. Statements
// run one at a time.
type Handle struct {
	client *Client
	id     int

	// turn holds a token while a statement or Close owns the session.
	turn   chan struct{}
	closed bool
}

// Open creates a session and waits until it accepts statements. A session
// that never becomes idle is deleted before returning.
func Open(ctx context.Context, c *Client, req SessionRequest) (*Handle, error) {
	s, err := c.CreateSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open livy session: %w", err)
	}
	metrics.AddLivySessions(1)
	h := &Handle{client: c, id: s.ID, turn: make(chan struct{}, 1)}

	if _, err := c.WaitIdle(ctx, s.ID); err != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
		defer cancel()
		if cerr := h.Close(dctx); cerr != nil {
			c.log.Warn(ctx, "delete failed session", logger.Int("session", s.ID), logger.Error(cerr))
		}
		return nil, fmt.Errorf("open livy session: %w", err)
	}
	return h, nil
}

// ID is the Livy session id.
func (h *Handle) ID() int { return h.id }

// Run executes code and returns its text output. If ctx ends first the
// statement is cancelled on the server.
func (h *Handle) Run(ctx context.Context, code string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()
	if h.closed {
		return "", ErrClosed
	}

	st, err := h.client.SubmitStatement(ctx, h.id, code)
	if err != nil {
		return "", fmt.Errorf("submit statement: %w", err)
	}
	done, err := h.client.WaitStatement(ctx, h.id, st.ID)
	if err != nil {
		if ctx.Err() != nil {
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
			defer cancel()
			if cerr := h.client.CancelStatement(cctx, h.id, st.ID); cerr != nil {
				h.client.log.Warn(ctx, "cancel statement",
					logger.Int("session", h.id),
					logger.Int("statement", st.ID),
					logger.Error(cerr),
				)
			}
		}
		return "", err
	}
	return done.Output.Text(), nil
}

// Close deletes the session. Later calls return nil.
func (h *Handle) Close(ctx context.Context) error {
	if err := h.acquire(ctx); err != nil {
		return fmt.Errorf("close livy session %d: %w", h.id, err)
	}
	defer h.release()
	if h.closed {
		return nil
	}
	if err := h.client.DeleteSession(ctx, h.id); err != nil {
		return fmt.Errorf("close livy session %d: %w", h.id, err)
	}
	h.closed = true
	metrics.AddLivySessions(-1)
	h.client.log.Info(ctx, "livy session closed", logger.Int("session", h.id))
	return nil
}

// acquire waits for the session's turn or for ctx to end.
func (h *Handle) acquire(ctx context.Context) error {
	select {
	case h.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		h.release()
		return err
	}
	return nil
}

func (h *Handle) release() { <-h.turn }
