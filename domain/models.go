package domain

import "time"

// RedditPost is one post fetched from a subreddit listing.
type RedditPost struct {
	Title    string       `json:"title"`
	URL      string       `json:"url"`
	Content  string       `json:"content"`
	Metadata PostMetadata `json:"metadata"`
}

type PostMetadata struct {
	CreatedAt float64 `json:"created_at"`
	Score     int     `json:"score"`
}

// SubredditResult groups the posts fetched for one subreddit.
type SubredditResult struct {
	Subreddit string       `json:"subreddit"`
	Posts     []RedditPost `json:"posts"`
}

// Article is a news article returned by the news search.
type Article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// SubredditInfo is a discovery candidate returned by the subreddit search.
type SubredditInfo struct {
	Name        string
	Over18      bool
	Subscribers int
}

const (
	SourceTypeReddit = "reddit"
	SourceTypeNews   = "news"
)

// Claim is a single evaluable assertion attributed to its source.
type Claim struct {
	Text        string `json:"text"`
	SourceURL   string `json:"sourceUrl"`
	SourceTitle string `json:"sourceTitle"`
	SourceType  string `json:"sourceType"`
	Subreddit   string `json:"subreddit,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Origin names where the claim came from, for display and threat records.
func (c Claim) Origin() string {
	if c.Source != "" {
		return c.Source
	}
	if c.Subreddit != "" {
		return "r/" + c.Subreddit
	}
	return c.SourceType
}

type Publisher struct {
	Name string `json:"name"`
}

// Review is one claim review published by a fact-checking organisation.
type Review struct {
	Publisher          Publisher `json:"publisher"`
	URL                string    `json:"url"`
	TextualRating      string    `json:"textualRating"`
	TextualExplanation string    `json:"textualExplanation"`
}

// FactCheckResult is one claim matched by the fact-check authority.
type FactCheckResult struct {
	Claim       string   `json:"claim"`
	ClaimReview []Review `json:"claimReview"`
	Rating      string   `json:"rating"`
}

// ClaimVerification is the outcome of checking one extracted claim.
type ClaimVerification struct {
	Claim   Claim             `json:"claim"`
	Results []FactCheckResult `json:"factCheckResults"`
	IsFalse bool              `json:"isFalse"`
	Error   string            `json:"error,omitempty"`
}

type ThreatStatus string

const (
	StatusCritical ThreatStatus = "CRITICAL"
	StatusMedium   ThreatStatus = "MEDIUM"
	StatusLow      ThreatStatus = "LOW"
)

// ParseThreatStatus accepts the canonical statuses and the "MED" alias used
// by older records.
func ParseThreatStatus(s string) (ThreatStatus, bool) {
	switch ThreatStatus(normalizeUpper(s)) {
	case StatusCritical:
		return StatusCritical, true
	case StatusMedium, "MED":
		return StatusMedium, true
	case StatusLow:
		return StatusLow, true
	}
	return "", false
}

// ThreatEntry describes a piece of verified misinformation.
type ThreatEntry struct {
	Description            string       `json:"description"`
	SourceURL              string       `json:"source_url"`
	Source                 string       `json:"source"`
	Status                 ThreatStatus `json:"status"`
	FactCheckerURL         string       `json:"factCheckerUrl"`
	FactCheckerExplanation string       `json:"factCheckerExplanation"`
}

// Complete reports whether every field is populated.
func (t ThreatEntry) Complete() bool {
	return t.Description != "" && t.SourceURL != "" && t.Source != "" && t.Status != "" &&
		t.FactCheckerURL != "" && t.FactCheckerExplanation != ""
}

// CredentialToken is a bearer token with its absolute expiry.
type CredentialToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token can still be used at now, keeping margin
// in reserve before the expiry.
func (t *CredentialToken) ValidAt(now time.Time, margin time.Duration) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt.Add(-margin))
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the generative text request contract.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Record is one message received from the bus.
type Record struct {
	ID            string
	ReceiptHandle string
	Body          []byte
	Attributes    map[string]string
}
