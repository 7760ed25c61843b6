package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultMaxAttempts  = 3
	defaultInitialDelay = 500 * time.Millisecond
	maxErrorBodyLen     = 512
)

// RetryConfig configures retries of provider calls.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	BackoffFactor   float64
	RetryableStatus []int
}

// DefaultRetryConfig retries rate limits and transient upstream errors.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   defaultMaxAttempts,
		InitialDelay:  defaultInitialDelay,
		BackoffFactor: 2.0,
		RetryableStatus: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// statusErr is a non-2xx provider response.
type statusErr struct {
	code int
	msg  string
}

func (e statusErr) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.code, e.msg)
}

func (e statusErr) StatusCode() int { return e.code }

// newHTTPClient builds a client with the given timeout and optional proxy.
func newHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// doJSON sends body (GET when nil) and returns the response payload.
// Retryable statuses and transport errors are retried with exponential backoff.
func doJSON(ctx context.Context, client *http.Client, retry RetryConfig, method, endpoint string, headers http.Header, body []byte, provider string) ([]byte, error) {
	attempts := max(retry.MaxAttempts, 1)
	delay := retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		for k, vs := range headers {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		if body != nil && httpReq.Header.Get("Content-Type") == "" {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		data, status, err := send(client, httpReq, provider)
		switch {
		case err != nil:
			lastErr = err
		case status < 200 || status >= 300:
			lastErr = statusErr{code: status, msg: summarizeErrorBody(data)}
			if !slices.Contains(retry.RetryableStatus, status) {
				return nil, lastErr
			}
		default:
			return data, nil
		}

		if attempt < attempts {
			log.Debugf("%s executor: attempt %d/%d failed: %v", provider, attempt, attempts, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * retry.BackoffFactor)
		}
	}
	return nil, lastErr
}

func send(client *http.Client, req *http.Request, provider string) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("%s executor: close response body error: %v", provider, errClose)
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func summarizeErrorBody(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxErrorBodyLen {
		return string(b[:maxErrorBodyLen]) + "..."
	}
	return string(b)
}
