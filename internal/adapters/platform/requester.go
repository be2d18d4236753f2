package platform

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"travelhub/internal/adapters/observability"
)

// Limiter is satisfied by *WindowLimiter and *rate.Limiter.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Requester performs throttled JSON GETs against one upstream service.
type Requester struct {
	service     string
	hc          *http.Client
	limiter     Limiter
	headers     map[string]string
	maxAttempts int
}

func NewRequester(service string, limiter Limiter, timeout time.Duration) *Requester {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Requester{
		service: service,
		hc:      &http.Client{Timeout: timeout},
		limiter: limiter,
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "travelhub/1.0",
		},
		maxAttempts: 4,
	}
}

// WithHeader sets a header sent on every request.
func (r *Requester) WithHeader(k, v string) *Requester {
	r.headers[k] = v
	return r
}

// WithAttempts bounds the number of tries per call (including the first).
func (r *Requester) WithAttempts(n int) *Requester {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

// GetJSON fetches url and decodes it into out. Retries on 429 and transient
// 5xx, honoring Retry-After when provided. Every attempt passes the limiter.
func (r *Requester) GetJSON(ctx context.Context, endpoint, url string, out any) error {
	var lastErr error
	for i := 0; i < r.maxAttempts; i++ {
		more := i < r.maxAttempts-1

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return r.wrap(endpoint, 0, err)
			}
		}

		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return r.wrap(endpoint, 0, err)
		}
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := r.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(r.service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return r.wrap(endpoint, 0, ctx.Err())
			}
			lastErr = r.wrap(endpoint, 0, err)
			if more && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return r.wrap(endpoint, 0, ctx.Err())
			}
			return lastErr
		}
		observability.ObserveExternal(r.service, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return r.wrap(endpoint, resp.StatusCode, fmt.Errorf("%w: %v", ErrBadPayload, err))
			}
			return nil

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return r.wrap(endpoint, resp.StatusCode, ErrNotFound)

		case http.StatusUnauthorized:
			resp.Body.Close()
			return r.wrap(endpoint, resp.StatusCode, ErrUnauthorized)

		case http.StatusForbidden:
			resp.Body.Close()
			return r.wrap(endpoint, resp.StatusCode, ErrForbidden)

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = r.wrap(endpoint, resp.StatusCode, fmt.Errorf("remote %d", resp.StatusCode))
			log.Debug().Str("service", r.service).Str("endpoint", endpoint).
				Int("status", resp.StatusCode).Dur("retry_in", wait).Msg("upstream retry")
			if more && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return r.wrap(endpoint, 0, ctx.Err())
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return r.wrap(endpoint, resp.StatusCode, fmt.Errorf("bad status: %s", strings.TrimSpace(string(b))))
		}
	}
	if lastErr == nil {
		lastErr = r.wrap(endpoint, 0, errors.New("no attempt made"))
	}
	return lastErr
}

func (r *Requester) wrap(endpoint string, status int, err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = redactURL(ue)
	}
	return &UpstreamError{Service: r.service, Endpoint: endpoint, Status: status, Err: err}
}

// redactURL drops the query string, which carries API keys, from transport
// errors. The cause stays reachable through Unwrap.
func redactURL(ue *url.Error) *url.Error {
	c := *ue
	if i := strings.IndexByte(c.URL, '?'); i >= 0 {
		c.URL = c.URL[:i]
	}
	return &c
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
