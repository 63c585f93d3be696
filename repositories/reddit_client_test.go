package repositories

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"verishield-pipeline/domain"
)

type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) EnsureToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockTokenSource) Invalidate(token string) {
	m.Called(token)
}

func newRedditTestClient(t *testing.T, handler http.HandlerFunc) (*RedditClient, *MockTokenSource) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := new(MockTokenSource)
	tokens.On("EnsureToken", mock.Anything).Return("tok", nil)
	return NewRedditClient(server.URL, "test-agent", tokens, WithPacer(NewPacer(0, 2))), tokens
}

func TestRedditClient_NewPosts(t *testing.T) {
	client, _ := newRedditTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/golang/new", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"data":{"children":[
			{"data":{"title":"Go 1.22","url":"https://go.dev","selftext":"loops","created_utc":1700000000.5,"score":42}},
			{"data":{"title":"Link only","url":"https://example.com"}}
		]}}`))
	})

	posts, err := client.NewPosts(context.TODO(), "golang", 10)

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "Go 1.22", posts[0].Title)
	assert.Equal(t, "loops", posts[0].Content)
	assert.Equal(t, 1700000000.5, posts[0].Metadata.CreatedAt)
	assert.Equal(t, 42, posts[0].Metadata.Score)
	assert.Equal(t, "", posts[1].Content)
}

func TestRedditClient_SearchSubreddits(t *testing.T) {
	client, _ := newRedditTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subreddits/search", r.URL.Path)
		assert.Equal(t, "vaccines", r.URL.Query().Get("q"))
		w.Write([]byte(`{"data":{"children":[
			{"data":{"display_name":"Health","over18":false,"subscribers":250000}},
			{"data":{"display_name":"nsfwhealth","over18":true,"subscribers":90000}}
		]}}`))
	})

	subs, err := client.SearchSubreddits(context.TODO(), "vaccines", 25)

	require.NoError(t, err)
	assert.Equal(t, []domain.SubredditInfo{
		{Name: "Health", Subscribers: 250000},
		{Name: "nsfwhealth", Over18: true, Subscribers: 90000},
	}, subs)
}

func TestRedditClient_SearchPostSubreddits(t *testing.T) {
	client, _ := newRedditTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "link", r.URL.Query().Get("type"))
		w.Write([]byte(`{"data":{"children":[
			{"data":{"subreddit":"news"}},{"data":{"subreddit":"science"}},{"data":{"subreddit":"news"}}
		]}}`))
	})

	names, err := client.SearchPostSubreddits(context.TODO(), "climate", 50)

	require.NoError(t, err)
	assert.Equal(t, []string{"news", "science", "news"}, names)
}

func TestRedditClient_UnauthorizedInvalidatesToken(t *testing.T) {
	client, tokens := newRedditTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	tokens.On("Invalidate", "tok").Return()

	_, err := client.NewPosts(context.TODO(), "golang", 10)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	tokens.AssertCalled(t, "Invalidate", "tok")
}

func TestRedditClient_ServerErrorIsTransient(t *testing.T) {
	client, _ := newRedditTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.SearchSubreddits(context.TODO(), "x", 10)

	var transient *domain.TransientError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, http.StatusServiceUnavailable, transient.StatusCode)
}

func TestRedditClient_TokenErrorStopsRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	tokens := new(MockTokenSource)
	tokens.On("EnsureToken", mock.Anything).Return("", domain.ErrConfiguration)
	client := NewRedditClient(server.URL, "ua", tokens)

	_, err := client.NewPosts(context.TODO(), "golang", 10)

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.False(t, called)
}

func TestRedditClient_ObservesRateLimitHeaders(t *testing.T) {
	var slept bool
	client, _ := newRedditTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-remaining", "1")
		w.Header().Set("x-ratelimit-reset", "5")
		w.Write([]byte(`{"data":{"children":[]}}`))
	})
	client.pacer.sleep = func(_ context.Context, d time.Duration) error {
		slept = d >= 5*time.Second
		return nil
	}

	_, err := client.NewPosts(context.TODO(), "a", 10)
	require.NoError(t, err)
	_, err = client.NewPosts(context.TODO(), "b", 10)
	require.NoError(t, err)

	assert.True(t, slept)
}
