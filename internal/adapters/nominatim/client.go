package nominatim

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

	"golang.org/x/time/rate"

	"oryem_comparables/internal/adapters/observability"
	"oryem_comparables/internal/domain"
)

// resolveTimeout bounds one geocoding call end to end; callers see a
// failure, never an indefinite hang.
const resolveTimeout = 10 * time.Second

var (
	ErrNoMatch     = errors.New("nominatim: no match")
	ErrUnavailable = errors.New("nominatim: service unavailable")
)

// Client talks to a Nominatim-compatible geocoding endpoint, restricted to
// one country. Public instances require a descriptive User-Agent and a low
// request rate; both are enforced here, not left to callers.
type Client struct {
	base    string
	country string
	ua      string
	hc      *http.Client
	rl      *rate.Limiter
}

func New(base, userAgent, countryCode string, rps int) (*Client, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("user agent is required")
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		country: countryCode,
		ua:      userAgent,
		hc:      &http.Client{Timeout: resolveTimeout},
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type result struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve geocodes a free-text address. ErrNoMatch when the provider knows
// nothing; ErrUnavailable after retries are exhausted. Persisting the
// coordinates is the caller's responsibility.
func (c *Client) Resolve(ctx context.Context, address string) (domain.Coords, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	if c.country != "" {
		q.Set("countrycodes", c.country)
	}

	var out []result
	start := time.Now()
	err := c.get(ctx, c.base+"/search?"+q.Encode(), &out)
	observability.ObserveGeocode(statusLabel(err), time.Since(start))
	if err != nil {
		return domain.Coords{}, err
	}
	if len(out) == 0 {
		return domain.Coords{}, fmt.Errorf("%w: %s", ErrNoMatch, address)
	}

	lat, err1 := strconv.ParseFloat(out[0].Lat, 64)
	lng, err2 := strconv.ParseFloat(out[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return domain.Coords{}, fmt.Errorf("nominatim: malformed coordinates %q/%q", out[0].Lat, out[0].Lon)
	}
	return domain.Coords{Lat: lat, Lng: lng}, nil
}

// get performs a GET with client-side rate limiting and bounded retries on
// 429/transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.ua)

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 2 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 2 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
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

// retryAfter parses Retry-After (seconds or HTTP-date). Zero if absent.
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

// backoff doubles per attempt (200ms, 400ms, ...) with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
