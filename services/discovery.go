package services

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
)

// Consumer-side interfaces
type SubredditSearcher interface {
	SearchSubreddits(ctx context.Context, query string, limit int) ([]domain.SubredditInfo, error)
	SearchPostSubreddits(ctx context.Context, query string, limit int) ([]string, error)
}

type ChatCompleter interface {
	Complete(ctx context.Context, req domain.ChatRequest) (string, error)
}

const (
	TierSubredditSearch = "subreddit-search"
	TierPostSearch      = "post-search"
	TierModelSuggestion = "model-suggestion"
	TierDefaults        = "defaults"

	credentialReddit = "reddit"
	credentialChat   = "chat"

	subredditSearchLimit = 25
	postSearchLimit      = 100
)

var subredditPattern = regexp.MustCompile(`r/(\w+)`)

const suggestionSystemPrompt = "You suggest subreddit names for monitoring topics. Answer with one 'r/Name' per line and nothing else."

// DiscoveryService finds the subreddits to scrape for an envelope.
type DiscoveryService struct {
	reddit         SubredditSearcher
	chat           ChatCompleter
	defaults       []string
	minSubscribers int
	resolver       *Resolver[domain.Envelope, string]
}

type DiscoveryOption func(*DiscoveryService)

func WithSubredditSearcher(r SubredditSearcher) DiscoveryOption {
	return func(s *DiscoveryService) { s.reddit = r }
}

func WithChatCompleter(c ChatCompleter) DiscoveryOption {
	return func(s *DiscoveryService) { s.chat = c }
}

func WithDefaultSubreddits(names []string) DiscoveryOption {
	return func(s *DiscoveryService) { s.defaults = names }
}

func WithMinSubscribers(n int) DiscoveryOption {
	return func(s *DiscoveryService) { s.minSubscribers = n }
}

func NewDiscoveryService(opts ...DiscoveryOption) *DiscoveryService {
	s := &DiscoveryService{minSubscribers: 10000}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = NewResolver(domain.MaxDiscoveryTargets, func(name string) string { return name },
		Tier[domain.Envelope, string]{Name: TierSubredditSearch, Credential: credentialReddit, Resolve: s.searchSubreddits},
		Tier[domain.Envelope, string]{Name: TierPostSearch, Credential: credentialReddit, Resolve: s.searchPosts},
		Tier[domain.Envelope, string]{Name: TierModelSuggestion, Credential: credentialChat, Resolve: s.suggest},
		Tier[domain.Envelope, string]{Name: TierDefaults, Resolve: s.defaultSet},
	)
	return s
}

// Handle sets payload.subreddits. A credential failure fails the record only
// when no tier independent of that credential found anything.
func (s *DiscoveryService) Handle(ctx context.Context, env domain.Envelope) (domain.Envelope, error) {
	subreddits, tier, err := s.resolver.Resolve(ctx, env)
	if err != nil {
		return env, err
	}
	logging.FromContext(ctx).Info("discovered subreddits", "tier", tier, "count", len(subreddits),
		"subreddits", strings.Join(subreddits, ","))
	env.Payload.Subreddits = subreddits
	return env, nil
}

func (s *DiscoveryService) searchSubreddits(ctx context.Context, env domain.Envelope) ([]string, error) {
	if s.reddit == nil {
		return nil, nil
	}
	var (
		found   []string
		seen    = map[string]bool{}
		lastErr error
	)
	for _, keyword := range env.Keywords {
		infos, err := s.reddit.SearchSubreddits(ctx, keyword, subredditSearchLimit)
		if err != nil {
			if domain.IsFatal(err) {
				return nil, err
			}
			lastErr = err
			continue
		}
		for _, info := range infos {
			key := strings.ToLower(info.Name)
			if info.Over18 || info.Subscribers < s.minSubscribers || seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, info.Name)
			if len(found) == domain.MaxDiscoveryTargets {
				return found, nil
			}
		}
	}
	if len(found) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return found, nil
}

func (s *DiscoveryService) searchPosts(ctx context.Context, env domain.Envelope) ([]string, error) {
	if s.reddit == nil || len(env.Keywords) == 0 {
		return nil, nil
	}
	names, err := s.reddit.SearchPostSubreddits(ctx, strings.Join(env.Keywords, " OR "), postSearchLimit)
	if err != nil {
		return nil, err
	}
	return rankByFrequency(names), nil
}

// rankByFrequency orders names by descending occurrence count, first
// appearance breaking ties. Names are compared case-insensitively.
func rankByFrequency(names []string) []string {
	type entry struct {
		name  string
		count int
		first int
	}
	entries := map[string]*entry{}
	for i, name := range names {
		key := strings.ToLower(name)
		if e, ok := entries[key]; ok {
			e.count++
			continue
		}
		entries[key] = &entry{name: name, count: 1, first: i}
	}

	ranked := make([]*entry, 0, len(entries))
	for _, e := range entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})

	out := make([]string, len(ranked))
	for i, e := range ranked {
		out[i] = e.name
	}
	return out
}

func (s *DiscoveryService) suggest(ctx context.Context, env domain.Envelope) ([]string, error) {
	keywords := env.AllKeywords()
	if s.chat == nil || len(keywords) == 0 {
		return nil, nil
	}
	reply, err := s.chat.Complete(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: suggestionSystemPrompt},
			{Role: "user", Content: "Topics: " + strings.Join(keywords, ", ")},
		},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		return nil, err
	}
	return ParseSubredditSuggestions(reply), nil
}

// ParseSubredditSuggestions extracts every r/<name> mention, lowercased.
func ParseSubredditSuggestions(text string) []string {
	matches := subredditPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ToLower(m[1]))
	}
	return out
}

func (s *DiscoveryService) defaultSet(context.Context, domain.Envelope) ([]string, error) {
	return append([]string(nil), s.defaults...), nil
}
