package repositories

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPacer(interval time.Duration) (*Pacer, *[]time.Duration) {
	var slept []time.Duration
	p := NewPacer(interval, 2)
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func rateHeaders(remaining, reset string) http.Header {
	h := http.Header{}
	h.Set(headerRateRemaining, remaining)
	h.Set(headerRateReset, reset)
	return h
}

func TestPacer_BacksOffWhenQuotaIsLow(t *testing.T) {
	p, slept := recordingPacer(0)

	require.NoError(t, p.Wait(context.TODO()))
	p.Observe(rateHeaders("1", "5"))
	require.NoError(t, p.Wait(context.TODO()))

	require.Len(t, *slept, 1)
	assert.GreaterOrEqual(t, (*slept)[0], 5*time.Second)
}

func TestPacer_BackOffIsOneShot(t *testing.T) {
	p, slept := recordingPacer(0)

	p.Observe(rateHeaders("0.0", "2.5"))
	require.NoError(t, p.Wait(context.TODO()))
	require.NoError(t, p.Wait(context.TODO()))

	assert.Equal(t, []time.Duration{2500 * time.Millisecond}, *slept)
}

func TestPacer_IgnoresHealthyQuota(t *testing.T) {
	p, slept := recordingPacer(0)

	p.Observe(rateHeaders("598", "300"))
	p.Observe(http.Header{})
	p.Observe(rateHeaders("1", "not-a-number"))
	require.NoError(t, p.Wait(context.TODO()))

	assert.Empty(t, *slept)
}

func TestPacer_SpacesConsecutiveRequests(t *testing.T) {
	p := NewPacer(50*time.Millisecond, 2)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.TODO()))
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestPacer_WaitHonoursCancellation(t *testing.T) {
	p := NewPacer(0, 2)
	p.Observe(rateHeaders("1", "60"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, p.Wait(ctx))
}
