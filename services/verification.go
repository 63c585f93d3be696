package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/metrics"
)

// Consumer-side interfaces
type FactChecker interface {
	Search(ctx context.Context, text string) ([]domain.FactCheckResult, error)
}

const (
	threatOriginSynthesized = "synthesized"
	threatOriginFallback    = "fallback"

	explanationSeparator = " | "

	threatSystemPrompt = "You turn fact-checked false claims into threat records. Reply with a single JSON object " +
		`with the string fields "description", "source_url", "source", "status", "factCheckerUrl" and ` +
		`"factCheckerExplanation". status is one of CRITICAL, MEDIUM or LOW. Reply with JSON only.`
)

// IsFalseRating reports whether a textual rating marks a claim as false. Any
// rating containing "false" matches, including "Half False".
func IsFalseRating(rating string) bool {
	return strings.Contains(strings.ToLower(rating), "false")
}

// FalseReviews returns the reviews, across all results, whose rating is false.
func FalseReviews(results []domain.FactCheckResult) []domain.Review {
	var out []domain.Review
	for _, result := range results {
		for _, review := range result.ClaimReview {
			if IsFalseRating(review.TextualRating) {
				out = append(out, review)
			}
		}
	}
	return out
}

func joinExplanations(reviews []domain.Review) string {
	parts := make([]string, 0, len(reviews))
	for _, r := range reviews {
		explanation := strings.TrimSpace(r.TextualExplanation)
		if explanation == "" {
			explanation = domain.NoExplanationProvided
		}
		parts = append(parts, explanation)
	}
	return strings.Join(parts, explanationSeparator)
}

// FallbackThreat builds a threat entry from already known data only.
func FallbackThreat(claim domain.Claim, reviews []domain.Review) domain.ThreatEntry {
	head, truncated := truncateRunes(claim.Text, domain.FallbackDescriptionLen)
	description := domain.FallbackDescriptionHead + head
	if truncated {
		description += "..."
	}

	entry := domain.ThreatEntry{
		Description:            description,
		SourceURL:              claim.SourceURL,
		Source:                 claim.Origin(),
		Status:                 domain.StatusMedium,
		FactCheckerExplanation: joinExplanations(reviews),
	}
	if len(reviews) > 0 {
		entry.FactCheckerURL = reviews[0].URL
	}
	if entry.FactCheckerExplanation == "" {
		entry.FactCheckerExplanation = domain.NoExplanationProvided
	}
	return entry
}

type synthesizedThreat struct {
	Description            string `json:"description"`
	SourceURL              string `json:"source_url"`
	Source                 string `json:"source"`
	Status                 string `json:"status"`
	FactCheckerURL         string `json:"factCheckerUrl"`
	FactCheckerExplanation string `json:"factCheckerExplanation"`
}

// ParseThreatEntry decodes model output into a threat entry. Code fences and
// text around the JSON object are ignored. Unknown statuses become MEDIUM and
// empty fields are taken from fallback.
func ParseThreatEntry(raw string, fallback domain.ThreatEntry) (domain.ThreatEntry, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return domain.ThreatEntry{}, errors.New("no JSON object in model output")
	}

	var parsed synthesizedThreat
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return domain.ThreatEntry{}, fmt.Errorf("invalid threat JSON: %w", err)
	}

	status, ok := domain.ParseThreatStatus(parsed.Status)
	if !ok {
		status = domain.StatusMedium
	}
	entry := domain.ThreatEntry{
		Description:            firstNonEmpty(parsed.Description, fallback.Description),
		SourceURL:              firstNonEmpty(parsed.SourceURL, fallback.SourceURL),
		Source:                 firstNonEmpty(parsed.Source, fallback.Source),
		Status:                 status,
		FactCheckerURL:         firstNonEmpty(parsed.FactCheckerURL, fallback.FactCheckerURL),
		FactCheckerExplanation: firstNonEmpty(parsed.FactCheckerExplanation, fallback.FactCheckerExplanation),
	}
	return entry, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// VerificationService fact-checks claims and produces a threat entry for
// every claim rated false.
type VerificationService struct {
	checker FactChecker
	chat    ChatCompleter
}

type VerificationOption func(*VerificationService)

func WithFactChecker(c FactChecker) VerificationOption {
	return func(s *VerificationService) { s.checker = c }
}

func WithThreatSynthesizer(c ChatCompleter) VerificationOption {
	return func(s *VerificationService) { s.chat = c }
}

func NewVerificationService(opts ...VerificationOption) *VerificationService {
	s := &VerificationService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle sets payload.factChecks (one per claim, in claim order) and
// payload.threats (one per false claim).
func (s *VerificationService) Handle(ctx context.Context, env domain.Envelope) (domain.Envelope, error) {
	verifications := ProcessUnits(ctx, domain.StageFactCheck, env.Payload.Claims, s.verify,
		func(claim domain.Claim, err error) domain.ClaimVerification {
			return domain.ClaimVerification{Claim: claim, Results: []domain.FactCheckResult{}, Error: err.Error()}
		},
	)

	var falseOnes []domain.ClaimVerification
	for _, v := range verifications {
		if v.IsFalse {
			falseOnes = append(falseOnes, v)
		}
	}
	threats := ProcessUnits(ctx, domain.StageFactCheck, falseOnes,
		func(ctx context.Context, v domain.ClaimVerification) (domain.ThreatEntry, error) {
			return s.Synthesize(ctx, v), nil
		},
		func(v domain.ClaimVerification, _ error) domain.ThreatEntry {
			return FallbackThreat(v.Claim, FalseReviews(v.Results))
		},
	)

	logging.FromContext(ctx).Info("verified claims", "claims", len(verifications), "false", len(threats))
	env.Payload.FactChecks = verifications
	env.Payload.Threats = threats
	return env, nil
}

func (s *VerificationService) verify(ctx context.Context, claim domain.Claim) (domain.ClaimVerification, error) {
	results, err := s.checker.Search(ctx, claim.Text)
	if err != nil {
		return domain.ClaimVerification{}, err
	}
	if results == nil {
		results = []domain.FactCheckResult{}
	}
	return domain.ClaimVerification{
		Claim:   claim,
		Results: results,
		IsFalse: len(FalseReviews(results)) > 0,
	}, nil
}

// Synthesize asks the model for a threat entry and falls back to
// FallbackThreat when the call or the parse fails. It always returns a
// complete entry.
func (s *VerificationService) Synthesize(ctx context.Context, v domain.ClaimVerification) domain.ThreatEntry {
	reviews := FalseReviews(v.Results)
	fallback := FallbackThreat(v.Claim, reviews)
	logger := logging.FromContext(ctx)

	if s.chat == nil {
		metrics.Threat(threatOriginFallback)
		return fallback
	}

	reply, err := s.chat.Complete(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: threatSystemPrompt},
			{Role: "user", Content: threatPrompt(v.Claim, reviews)},
		},
		Temperature: 0.2,
		MaxTokens:   400,
	})
	if err != nil {
		logger.Warn("threat synthesis failed, using fallback", "error", err)
		metrics.Threat(threatOriginFallback)
		return fallback
	}

	entry, err := ParseThreatEntry(reply, fallback)
	if err != nil {
		logger.Warn("unparsable threat synthesis, using fallback", "error", err)
		metrics.Threat(threatOriginFallback)
		return fallback
	}
	metrics.Threat(threatOriginSynthesized)
	return entry
}

func threatPrompt(claim domain.Claim, reviews []domain.Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\nSource URL: %s\nSource: %s\n\nFact checks:\n", claim.Text, claim.SourceURL, claim.Origin())
	for _, r := range reviews {
		fmt.Fprintf(&b, "- %s rated it %q (%s): %s\n", r.Publisher.Name, r.TextualRating, r.URL, r.TextualExplanation)
	}
	return b.String()
}
