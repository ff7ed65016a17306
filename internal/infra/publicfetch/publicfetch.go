// Package publicfetch reads objects through their public, unauthenticated URL.
package publicfetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "shortng"
)

// ErrStatus signals a non-200 response.
var ErrStatus = errors.New("unexpected status")

// Fetcher performs GET requests with fiber's client agent.
type Fetcher struct {
	timeout time.Duration
}

// New returns a Fetcher; a non-positive timeout selects the default.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{timeout: timeout}
}

// Fetch returns the body of rawURL. Only 200 responses are accepted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	a := fiber.Get(rawURL)
	a.Timeout(timeout)
	a.UserAgent(userAgent)

	// The agent has no context hook; the request finishes in the background,
	// bounded by its timeout, when ctx is cancelled first.
	done := make(chan response, 1)
	go func() {
		code, body, errs := a.Bytes()
		done <- response{code: code, body: body, errs: errs}
	}()

	var resp response
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp = <-done:
	}

	if len(resp.errs) > 0 {
		return nil, fmt.Errorf("publicfetch: get %s: %w", rawURL, errors.Join(resp.errs...))
	}
	if resp.code != fiber.StatusOK {
		return nil, fmt.Errorf("publicfetch: get %s: %w %d", rawURL, ErrStatus, resp.code)
	}
	return resp.body, nil
}

type response struct {
	code int
	body []byte
	errs []error
}
