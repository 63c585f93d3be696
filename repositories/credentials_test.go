package repositories

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verishield-pipeline/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTokenServer(t *testing.T, calls *int32, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
			return
		}
		w.Write([]byte(`{"access_token":"tok-2","expires_in":3600}`))
	}))
}

func TestCredentialStore_ReusesValidToken(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, http.StatusOK)
	defer server.Close()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewCredentialStore(server.URL, "id", "secret", "ua", WithClock(clock.Now))

	first, err := store.EnsureToken(context.TODO())
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	second, err := store.EnsureToken(context.TODO())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCredentialStore_RefreshesInsideSafetyMargin(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, http.StatusOK)
	defer server.Close()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewCredentialStore(server.URL, "id", "secret", "ua", WithClock(clock.Now))

	_, err := store.EnsureToken(context.TODO())
	require.NoError(t, err)
	clock.Advance(3600*time.Second - 30*time.Second)
	token, err := store.EnsureToken(context.TODO())
	require.NoError(t, err)

	assert.Equal(t, "tok-2", token)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCredentialStore_ConcurrentCallersShareOneExchange(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, http.StatusOK)
	defer server.Close()

	store := NewCredentialStore(server.URL, "id", "secret", "ua")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := store.EnsureToken(context.TODO())
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCredentialStore_InvalidateForcesRefresh(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, http.StatusOK)
	defer server.Close()

	store := NewCredentialStore(server.URL, "id", "secret", "ua")
	first, err := store.EnsureToken(context.TODO())
	require.NoError(t, err)

	store.Invalidate("some-other-token")
	again, err := store.EnsureToken(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, first, again)

	store.Invalidate(first)
	refreshed, err := store.EnsureToken(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", refreshed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCredentialStore_MissingCredentials(t *testing.T) {
	store := NewCredentialStore("http://unused", "", "", "ua")

	_, err := store.EnsureToken(context.TODO())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.True(t, domain.IsFatal(err))
}

func TestCredentialStore_RejectedCredentials(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, http.StatusUnauthorized)
	defer server.Close()

	_, err := NewCredentialStore(server.URL, "id", "secret", "ua").EnsureToken(context.TODO())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCredentialStore_ServerErrorIsTransient(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, http.StatusBadGateway)
	defer server.Close()

	_, err := NewCredentialStore(server.URL, "id", "secret", "ua").EnsureToken(context.TODO())

	var transient *domain.TransientError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, http.StatusBadGateway, transient.StatusCode)
	assert.False(t, domain.IsFatal(err))
}
