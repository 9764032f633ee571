package httpclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config controls timeouts and retry behaviour for outbound calls.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

func DefaultConfig() Config {
	return Config{
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 20,
	}
}

// NewTransport returns a pooled transport with bounded dial and TLS timeouts.
func NewTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// New builds a client whose transport chain is breaker -> retry -> pool.
// Retries happen inside the breaker so one logical call counts once.
func New(cfg Config, cb CircuitBreakerConfig, logger *slog.Logger) *http.Client {
	var rt http.RoundTripper = NewTransport(cfg)
	rt = &RetryTransport{Base: rt, Config: cfg}
	rt = NewBreakerTransport(rt, cb, logger)
	return &http.Client{Transport: rt, Timeout: cfg.Timeout}
}

// RetryTransport retries idempotent requests on network errors and
// retryable status codes with exponential backoff.
type RetryTransport struct {
	Base   http.RoundTripper
	Config Config
}

var errRetryableStatus = errors.New("retryable status")

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotent(req.Method) || t.Config.MaxRetries <= 0 {
		return t.base().RoundTrip(req)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.Config.RetryWaitMin
	b.MaxInterval = t.Config.RetryWaitMax

	var last *http.Response
	resp, err := backoff.Retry(req.Context(), func() (*http.Response, error) {
		resp, err := t.base().RoundTrip(req)
		if err != nil {
			if isRetryableError(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if isRetryableStatus(resp.StatusCode) {
			if last != nil {
				_ = last.Body.Close()
			}
			last = resp
			return nil, fmt.Errorf("%w: %d", errRetryableStatus, resp.StatusCode)
		}
		return resp, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(t.Config.MaxRetries+1)),
	)
	if errors.Is(err, errRetryableStatus) && last != nil {
		// Out of attempts: hand the final upstream response to the caller.
		return last, nil
	}
	if last != nil {
		_ = last.Body.Close()
	}
	return resp, err
}

func (t *RetryTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		(code >= 500 && code != http.StatusNotImplemented)
}

// isRetryableError treats transport-level failures as transient and
// caller cancellation as final.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
