package services

import (
	"context"
	"errors"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/metrics"
)

// Consumer-side interfaces
type PostLister interface {
	NewPosts(ctx context.Context, subreddit string, limit int) ([]domain.RedditPost, error)
}

type TokenEnsurer interface {
	EnsureToken(ctx context.Context) (string, error)
}

// ScraperService fetches the newest posts of every discovered subreddit.
type ScraperService struct {
	posts  PostLister
	tokens TokenEnsurer
	limit  int
}

type ScraperOption func(*ScraperService)

func WithPostLister(p PostLister) ScraperOption {
	return func(s *ScraperService) { s.posts = p }
}

func WithTokenEnsurer(t TokenEnsurer) ScraperOption {
	return func(s *ScraperService) { s.tokens = t }
}

func WithPostsPerSubreddit(n int) ScraperOption {
	return func(s *ScraperService) {
		if n > 0 {
			s.limit = n
		}
	}
}

func NewScraperService(opts ...ScraperOption) *ScraperService {
	s := &ScraperService{limit: 10}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle sets payload.results, one entry per subreddit in input order.
// Subreddits are fetched one after another because the upstream is paced; a
// failed subreddit yields an empty post list.
func (s *ScraperService) Handle(ctx context.Context, env domain.Envelope) (domain.Envelope, error) {
	logger := logging.FromContext(ctx)
	if s.tokens != nil {
		if _, err := s.tokens.EnsureToken(ctx); err != nil && domain.IsFatal(err) {
			return env, err
		}
	}

	results := make([]domain.SubredditResult, 0, len(env.Payload.Subreddits))
	for _, subreddit := range env.Payload.Subreddits {
		posts, err := s.posts.NewPosts(ctx, subreddit, s.limit)
		if err != nil {
			if errors.Is(err, domain.ErrConfiguration) {
				return env, err
			}
			logger.Warn("failed to fetch posts", "subreddit", subreddit, "error", err)
			metrics.DegradedUnit(domain.StageScraper)
			posts = []domain.RedditPost{}
		}
		results = append(results, domain.SubredditResult{Subreddit: subreddit, Posts: posts})
	}

	logger.Info("scraped subreddits", "subreddits", len(results), "posts", countPosts(results))
	env.Payload.Results = results
	return env, nil
}

func countPosts(results []domain.SubredditResult) int {
	n := 0
	for _, r := range results {
		n += len(r.Posts)
	}
	return n
}
