package ostrom

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig bounds the in-attempt retries on retryable failures.
// The coordinator's schedule is the retry mechanism across attempts, so
// these stay small.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func defaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// doWithRetry runs the request through the circuit breaker, retrying
// retryable failures with exponential backoff. The response, when
// returned, has a 2xx status and an open body.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var attempt int
	for {
		if err := ctx.Err(); err != nil {
			return nil, &TransportError{Err: err}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := c.breaker.Execute(func() (any, error) {
			resp, doErr := c.http.Do(req)
			if doErr != nil {
				return nil, &TransportError{Err: doErr}
			}
			if err := classifyStatus(resp); err != nil {
				drain(resp)
				return nil, err
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Err: err}
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			// The data host rejected our token, force a re-auth on the
			// next call rather than hammering with the same token.
			c.invalidateToken()
			return nil, err
		}

		if !IsRetryable(err) || attempt >= c.backoff.MaxRetries {
			return nil, err
		}

		delay := c.backoff.InitialInterval << attempt
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &TransportError{Err: ctx.Err()}
		case <-timer.C:
		}

		attempt++
	}
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &TransportError{Status: resp.StatusCode}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ApiError{Status: resp.StatusCode, Body: string(body)}
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
