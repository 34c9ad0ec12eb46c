// Package sheet fetches the published CSV export of the residents sheet.
package sheet

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"resident_directory/internal/adapters/observability"
)

// MaxBodyBytes caps how much of a feed response is read.
const MaxBodyBytes = 8 << 20

var (
	ErrNotFound     = errors.New("sheet: not found")
	ErrUnauthorized = errors.New("sheet: unauthorized")
	ErrForbidden    = errors.New("sheet: forbidden")
	ErrTooLarge     = errors.New("sheet: response too large")
	ErrNoURL        = errors.New("sheet: at least one feed URL is required")
)

type Client struct {
	urls []string
	hc   *http.Client
	rl   *rate.Limiter
}

// New returns a client for the given feed URLs. The first URL is the
// published export; later ones are mirrors tried only when an earlier one
// answers 404 (e.g. the sheet was re-published under a new id).
func New(urls []string, rps int) (*Client, error) {
	var clean []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoURL
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		urls: clean,
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// FetchFeed returns the CSV text of the first URL that has one.
func (c *Client) FetchFeed(ctx context.Context) (string, error) {
	var last error
	for _, u := range c.urls {
		body, err := c.get(ctx, u)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				last = err
				continue // try next mirror
			}
			return "", err // non-404: stop early
		}
		return body, nil
	}
	return "", last
}

// get performs a GET with client-side rate limiting and retries, returning
// the body as text. Retries on 429 and transient 5xx, honoring Retry-After
// when provided.
func (c *Client) get(ctx context.Context, url string) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")
		req.Header.Set("User-Agent", "resident-directory/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("sheet", "feed", 0, time.Since(start))
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", lastErr
		}
		observability.ObserveExternal("sheet", "feed", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := readBody(resp.Body)
			resp.Body.Close()
			return body, err

		case http.StatusNotFound:
			resp.Body.Close()
			return "", ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return "", ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return "", ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("sheet: remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return "", fmt.Errorf("sheet: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return "", lastErr
}

func readBody(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("sheet: read body: %w", err)
	}
	if len(b) > MaxBodyBytes {
		return "", ErrTooLarge
	}
	return string(b), nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
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

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
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

// backoff: 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
