package livy

import (
	"net/http"
	"time"

	"github.com/okian/elbow/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPollInterval sets the first delay between state polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxWait bounds how long WaitIdle and WaitStatement poll.
func WithMaxWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxWait = d
		}
	}
}

// WithBreakerThreshold sets how many consecutive failures open the breaker.
func WithBreakerThreshold(n uint32) Option {
	return func(c *Client) {
		if n > 0 {
			c.breakerTrips = n
		}
	}
}

// WithBreakerCooldown sets how long the breaker stays open.
func WithBreakerCooldown(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.breakerCooldown = d
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithRequestedBy sets the X-Requested-By header Livy demands when CSRF
// protection is on.
func WithRequestedBy(name string) Option {
	return func(c *Client) {
		c.requestedBy = name
	}
}
