package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"verishield-pipeline/domain"
)

// FactCheckClient queries the Google Fact Check Tools claim search.
type FactCheckClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	language   string
}

func NewFactCheckClient(endpoint, apiKey, language string) *FactCheckClient {
	return &FactCheckClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
		apiKey:     apiKey,
		language:   language,
	}
}

type claimSearchResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
			} `json:"publisher"`
			URL                string `json:"url"`
			TextualRating      string `json:"textualRating"`
			TextualExplanation string `json:"textualExplanation"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// Search returns the reviewed claims matching text. A review without an
// explanation gets a placeholder; the derived rating is the first review's.
func (c *FactCheckClient) Search(ctx context.Context, text string) ([]domain.FactCheckResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("fact check api key not set: %w", domain.ErrConfiguration)
	}

	params := url.Values{
		"key":          {c.apiKey},
		"query":        {text},
		"languageCode": {c.language},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fact check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransientError{Op: "fact check", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("fact check rejected api key: %w", domain.ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		return nil, &domain.TransientError{Op: "fact check", StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	var body claimSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &domain.TransientError{Op: "fact check", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	results := make([]domain.FactCheckResult, 0, len(body.Claims))
	for _, claim := range body.Claims {
		result := domain.FactCheckResult{
			Claim:       claim.Text,
			ClaimReview: make([]domain.Review, 0, len(claim.ClaimReview)),
			Rating:      domain.UnknownRating,
		}
		for _, review := range claim.ClaimReview {
			explanation := review.TextualExplanation
			if explanation == "" {
				explanation = domain.NoExplanationProvided
			}
			result.ClaimReview = append(result.ClaimReview, domain.Review{
				Publisher:          domain.Publisher{Name: review.Publisher.Name},
				URL:                review.URL,
				TextualRating:      review.TextualRating,
				TextualExplanation: explanation,
			})
		}
		if len(result.ClaimReview) > 0 && result.ClaimReview[0].TextualRating != "" {
			result.Rating = result.ClaimReview[0].TextualRating
		}
		results = append(results, result)
	}
	return results, nil
}
