package avadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/config"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3

	// Retry sleeps are fixed and sequential. Call volume against AvAdmin is
	// low relative to its capacity, so jitter and exponential growth buy
	// nothing here and would only add latency.
	timeoutBackoff = 1 * time.Second
	connectBackoff = 2 * time.Second
)

// Client issues single HTTP requests against AvAdmin with a per-attempt
// timeout and a bounded retry loop, classifying every outcome into the
// package's error taxonomy.
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	logger     logger.ZapLogger

	// overridable in tests so retry paths don't take wall-clock seconds
	timeoutBackoff time.Duration
	connectBackoff time.Duration
}

func NewClient(cfg *config.AvAdminConfig, log logger.ZapLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		timeout:        timeout,
		maxRetries:     maxRetries,
		httpClient:     &http.Client{},
		logger:         log,
		timeoutBackoff: timeoutBackoff,
		connectBackoff: connectBackoff,
	}
}

// statusError carries a non-2xx, non-403 response through the retry loop.
type statusError struct {
	status int
	path   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("avadmin responded %d for %s", e.status, e.path)
}

// execute runs one logical request with retries. It returns the raw JSON
// body on success, (nil, nil) when the resource is absent (404), and an
// error from the taxonomy in errors.go otherwise.
func (c *Client) execute(ctx context.Context, method, path string, body any, query url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		data, err := c.doAttempt(ctx, method, endpoint, body)
		if err == nil {
			return data, nil
		}

		// Permission refusals are not transient.
		if errors.Is(err, ErrAccessDenied) {
			c.logger.Warn("access denied by avadmin",
				zap.String("endpoint", path))
			return nil, err
		}

		// A cancelled or expired caller context is terminal; retrying on
		// behalf of a caller that has gone away just burns sleeps.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		last := attempt == c.maxRetries

		switch {
		case isTimeoutErr(err):
			c.logger.Warn("avadmin request timed out",
				zap.String("endpoint", path),
				zap.Int("attempt", attempt))
			if last {
				c.logger.Error("avadmin timed out on every attempt",
					zap.String("endpoint", path),
					zap.Int("attempts", c.maxRetries))
				return nil, fmt.Errorf("%w after %d attempts: %s", ErrTimeout, c.maxRetries, path)
			}
			time.Sleep(c.timeoutBackoff)

		case isConnectErr(err):
			c.logger.Warn("avadmin connection failed",
				zap.String("endpoint", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if last {
				c.logger.Error("avadmin unreachable on every attempt",
					zap.String("endpoint", path),
					zap.Int("attempts", c.maxRetries))
				return nil, fmt.Errorf("%w: %s", ErrUnavailable, path)
			}
			time.Sleep(c.connectBackoff)

		default:
			c.logger.Warn("avadmin request failed",
				zap.String("endpoint", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if last {
				var se *statusError
				if errors.As(err, &se) {
					c.logger.Error("avadmin kept returning an error status",
						zap.String("endpoint", path),
						zap.Int("status", se.status))
					return nil, fmt.Errorf("%w: %v", ErrRemote, err)
				}
				return nil, err
			}
			time.Sleep(c.timeoutBackoff)
		}
	}

	// unreachable: the loop always returns on the last attempt
	return nil, fmt.Errorf("%w: %s", ErrRemote, path)
}

func (c *Client) doAttempt(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return data, nil

	case resp.StatusCode == http.StatusNotFound:
		// Absence is a valid lookup outcome, not an error.
		return nil, nil

	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, req.URL.Path)

	default:
		return nil, &statusError{status: resp.StatusCode, path: req.URL.Path}
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectErr(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
