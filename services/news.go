package services

import (
	"context"
	"strings"
	"time"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/metrics"
)

// Consumer-side interfaces
type ArticleSearcher interface {
	Everything(ctx context.Context, keywords []string, from time.Time, pageSize int) ([]domain.Article, error)
}

const keywordSystemPrompt = "You generate search keywords for news monitoring. Reply with a comma separated list of keywords only."

// NewsService expands the user's keywords and searches recent news.
type NewsService struct {
	chat     ChatCompleter
	articles ArticleSearcher
	window   time.Duration
	pageSize int
	now      func() time.Time
}

type NewsOption func(*NewsService)

func WithKeywordGenerator(c ChatCompleter) NewsOption {
	return func(s *NewsService) { s.chat = c }
}

func WithArticleSearcher(a ArticleSearcher) NewsOption {
	return func(s *NewsService) { s.articles = a }
}

func NewNewsService(opts ...NewsOption) *NewsService {
	s := &NewsService{
		window:   7 * 24 * time.Hour,
		pageSize: 10,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle sets payload.generatedKeywords and payload.articles. A failed
// keyword generation falls back to the user keywords; a failed search yields
// no articles unless the failure is a credential or configuration error.
func (s *NewsService) Handle(ctx context.Context, env domain.Envelope) (domain.Envelope, error) {
	logger := logging.FromContext(ctx)

	generated, err := s.generateKeywords(ctx, env)
	if err != nil {
		logger.Warn("keyword generation failed, using user keywords", "error", err)
		metrics.DegradedUnit(domain.StageNews)
		generated = nil
	}

	query := mergeKeywords(env.Keywords, generated)
	articles, err := s.articles.Everything(ctx, query, s.now().Add(-s.window), s.pageSize)
	if err != nil {
		if domain.IsFatal(err) {
			return env, err
		}
		logger.Warn("news search failed", "error", err)
		metrics.DegradedUnit(domain.StageNews)
		articles = []domain.Article{}
	}

	logger.Info("fetched news", "keywords", len(query), "articles", len(articles))
	env.Payload.GeneratedKeywords = generated
	env.Payload.Articles = articles
	return env, nil
}

func (s *NewsService) generateKeywords(ctx context.Context, env domain.Envelope) ([]string, error) {
	if s.chat == nil || len(env.Keywords) == 0 {
		return nil, nil
	}
	reply, err := s.chat.Complete(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: keywordSystemPrompt},
			{Role: "user", Content: "Organization: " + env.Persona + "\nKeywords: " + strings.Join(env.Keywords, ", ")},
		},
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, err
	}
	return domain.SplitKeywords(reply), nil
}

// mergeKeywords appends extra to base, skipping case-insensitive duplicates.
func mergeKeywords(base, extra []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, k := range list {
			key := strings.ToLower(strings.TrimSpace(k))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(k))
		}
	}
	return out
}
