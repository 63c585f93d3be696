package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"verishield-pipeline/domain"
)

// TokenSource hands out bearer tokens and accepts invalidation of rejected
// ones. Implemented by CredentialStore.
type TokenSource interface {
	EnsureToken(ctx context.Context) (string, error)
	Invalidate(token string)
}

// RedditClient calls the authenticated Reddit listing and search endpoints.
// Every request goes through the pacer.
type RedditClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	tokens     TokenSource
	pacer      *Pacer
}

type RedditOption func(*RedditClient)

func WithRedditHTTPClient(c *http.Client) RedditOption {
	return func(r *RedditClient) { r.httpClient = c }
}

func WithPacer(p *Pacer) RedditOption {
	return func(r *RedditClient) { r.pacer = p }
}

func NewRedditClient(baseURL, userAgent string, tokens TokenSource, opts ...RedditOption) *RedditClient {
	r := &RedditClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		tokens:     tokens,
		pacer:      NewPacer(time.Second, 2),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type listing struct {
	Data struct {
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type subredditData struct {
	DisplayName string `json:"display_name"`
	Over18      bool   `json:"over18"`
	Subscribers int    `json:"subscribers"`
}

type postData struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Selftext   string  `json:"selftext"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`
}

// SearchSubreddits returns subreddits whose name or description match query.
func (r *RedditClient) SearchSubreddits(ctx context.Context, query string, limit int) ([]domain.SubredditInfo, error) {
	params := url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}
	var out listing
	if err := r.getJSON(ctx, "/subreddits/search", params, &out); err != nil {
		return nil, err
	}

	infos := make([]domain.SubredditInfo, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		var sub subredditData
		if err := json.Unmarshal(child.Data, &sub); err != nil || sub.DisplayName == "" {
			continue
		}
		infos = append(infos, domain.SubredditInfo{
			Name:        sub.DisplayName,
			Over18:      sub.Over18,
			Subscribers: sub.Subscribers,
		})
	}
	return infos, nil
}

// SearchPostSubreddits runs a site-wide post search and returns the
// subreddit of every matching post, in result order.
func (r *RedditClient) SearchPostSubreddits(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
		"type":  {"link"},
		"sort":  {"relevance"},
	}
	var out listing
	if err := r.getJSON(ctx, "/search", params, &out); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		var post postData
		if err := json.Unmarshal(child.Data, &post); err != nil || post.Subreddit == "" {
			continue
		}
		names = append(names, post.Subreddit)
	}
	return names, nil
}

// NewPosts returns the newest posts of subreddit.
func (r *RedditClient) NewPosts(ctx context.Context, subreddit string, limit int) ([]domain.RedditPost, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	var out listing
	if err := r.getJSON(ctx, "/r/"+url.PathEscape(subreddit)+"/new", params, &out); err != nil {
		return nil, err
	}

	posts := make([]domain.RedditPost, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		var post postData
		if err := json.Unmarshal(child.Data, &post); err != nil {
			continue
		}
		posts = append(posts, domain.RedditPost{
			Title:   post.Title,
			URL:     post.URL,
			Content: post.Selftext,
			Metadata: domain.PostMetadata{
				CreatedAt: post.CreatedUTC,
				Score:     post.Score,
			},
		})
	}
	return posts, nil
}

func (r *RedditClient) getJSON(ctx context.Context, path string, params url.Values, target interface{}) error {
	token, err := r.tokens.EnsureToken(ctx)
	if err != nil {
		return err
	}
	if err := r.pacer.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &domain.TransientError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()
	r.pacer.Observe(resp.Header)

	if resp.StatusCode == http.StatusUnauthorized {
		r.tokens.Invalidate(token)
		return fmt.Errorf("GET %s: %w", path, domain.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.TransientError{Op: "GET " + path, StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &domain.TransientError{Op: "GET " + path, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
