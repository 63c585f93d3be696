package services

import (
	"context"
	"regexp"
	"strings"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
)

const (
	untitledArticle   = "Untitled Article"
	unknownArticleURL = "https://unknown-source.com"

	claimSystemPrompt = "You extract claims from text. Include facts, opinions, speculations and predictions. " +
		"Each claim must be a single assertion that can be evaluated."
	claimUserPrompt = "Extract every claim from the following text. Answer with a numbered list, one claim per line.\n\n"
)

var claimNumberPrefix = regexp.MustCompile(`^\d+\.(?:\s+|$)`)

// ParseClaims turns a numbered list into claim texts. Numbering is optional;
// every line that is non-empty after trimming is a claim.
func ParseClaims(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(claimNumberPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// truncateRunes returns at most n characters of s.
func truncateRunes(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s, false
	}
	return string(runes[:n]), true
}

// ContentUnit is one post or article to extract claims from.
type ContentUnit struct {
	Title      string
	URL        string
	Body       string
	SourceType string
	Subreddit  string
	Source     string
}

// ClaimExtractor asks the chat model for the claims made by a content unit.
type ClaimExtractor struct {
	chat ChatCompleter
}

func NewClaimExtractor(chat ChatCompleter) *ClaimExtractor {
	return &ClaimExtractor{chat: chat}
}

// Extract never fails: any upstream error yields no claims.
func (e *ClaimExtractor) Extract(ctx context.Context, unit ContentUnit) []domain.Claim {
	text, truncated := truncateRunes(unit.Title+"\n\n"+unit.Body, domain.MaxClaimInputLength)
	logger := logging.FromContext(ctx)
	if truncated {
		logger.Debug("truncated content before extraction", "url", unit.URL)
	}

	reply, err := e.chat.Complete(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: claimSystemPrompt},
			{Role: "user", Content: claimUserPrompt + text},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		logger.Warn("claim extraction failed", "url", unit.URL, "error", err)
		return []domain.Claim{}
	}

	lines := ParseClaims(reply)
	claims := make([]domain.Claim, 0, len(lines))
	for _, line := range lines {
		claims = append(claims, domain.Claim{
			Text:        line,
			SourceURL:   unit.URL,
			SourceTitle: unit.Title,
			SourceType:  unit.SourceType,
			Subreddit:   unit.Subreddit,
			Source:      unit.Source,
		})
	}
	return claims
}

// ClaimsService extracts claims from every post and article of an envelope.
type ClaimsService struct {
	extractor *ClaimExtractor
}

func NewClaimsService(extractor *ClaimExtractor) *ClaimsService {
	return &ClaimsService{extractor: extractor}
}

// Handle sets payload.claims, ordered like the posts and articles they came
// from.
func (s *ClaimsService) Handle(ctx context.Context, env domain.Envelope) (domain.Envelope, error) {
	units := ContentUnits(env.Payload)
	perUnit := ProcessUnits(ctx, domain.StageClaims, units,
		func(ctx context.Context, unit ContentUnit) ([]domain.Claim, error) {
			return s.extractor.Extract(ctx, unit), nil
		},
		func(ContentUnit, error) []domain.Claim { return nil },
	)

	claims := []domain.Claim{}
	for _, c := range perUnit {
		claims = append(claims, c...)
	}
	logging.FromContext(ctx).Info("extracted claims", "units", len(units), "claims", len(claims))
	env.Payload.Claims = claims
	return env, nil
}

// ContentUnits lists the posts and articles that have a body. Articles
// without a title or url get placeholders.
func ContentUnits(p domain.Payload) []ContentUnit {
	var units []ContentUnit
	for _, result := range p.Results {
		for _, post := range result.Posts {
			if strings.TrimSpace(post.Content) == "" {
				continue
			}
			units = append(units, ContentUnit{
				Title:      post.Title,
				URL:        post.URL,
				Body:       post.Content,
				SourceType: domain.SourceTypeReddit,
				Subreddit:  result.Subreddit,
			})
		}
	}
	for _, article := range p.Articles {
		if strings.TrimSpace(article.Content) == "" {
			continue
		}
		unit := ContentUnit{
			Title:      article.Title,
			URL:        article.URL,
			Body:       article.Content,
			SourceType: domain.SourceTypeNews,
			Source:     article.Source,
		}
		if unit.Title == "" {
			unit.Title = untitledArticle
		}
		if unit.URL == "" {
			unit.URL = unknownArticleURL
		}
		units = append(units, unit)
	}
	return units
}
