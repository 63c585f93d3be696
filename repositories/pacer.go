package repositories

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"verishield-pipeline/metrics"
)

const (
	headerRateRemaining = "x-ratelimit-remaining"
	headerRateReset     = "x-ratelimit-reset"
)

// Pacer serializes requests to one rate-limited upstream. Every Wait is
// spaced by at least the configured interval, and after a response reports
// fewer than threshold remaining requests the next Wait also sleeps for the
// reported reset window.
type Pacer struct {
	limiter   *rate.Limiter
	threshold float64
	sleep     func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	backoff time.Duration
}

func NewPacer(interval time.Duration, threshold float64) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		limiter:   rate.NewLimiter(limit, 1),
		threshold: threshold,
		sleep:     sleepContext,
	}
}

// Wait blocks until the next request may be issued.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	backoff := p.backoff
	p.backoff = 0
	p.mu.Unlock()

	if backoff > 0 {
		metrics.RateLimitBackoff(backoff)
		if err := p.sleep(ctx, backoff); err != nil {
			return err
		}
	}
	return p.limiter.Wait(ctx)
}

// Observe records the rate-limit headers of a response.
func (p *Pacer) Observe(header http.Header) {
	remaining, err := strconv.ParseFloat(strings.TrimSpace(header.Get(headerRateRemaining)), 64)
	if err != nil || remaining >= p.threshold {
		return
	}
	reset, err := strconv.ParseFloat(strings.TrimSpace(header.Get(headerRateReset)), 64)
	if err != nil || reset <= 0 {
		return
	}

	p.mu.Lock()
	p.backoff = time.Duration(reset * float64(time.Second))
	p.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
