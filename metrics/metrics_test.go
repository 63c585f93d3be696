package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveRecord_NormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(recordsTotal.WithLabelValues("test-stage", OutcomeSuccess))

	ObserveRecord("test-stage", -time.Second, "weird")

	after := testutil.ToFloat64(recordsTotal.WithLabelValues("test-stage", OutcomeSuccess))
	assert.Equal(t, before+1, after)
}

func TestRateLimitBackoff_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(rateLimitBackoffSeconds)
	RateLimitBackoff(0)
	RateLimitBackoff(2 * time.Second)
	assert.Equal(t, before+2, testutil.ToFloat64(rateLimitBackoffSeconds))
}
