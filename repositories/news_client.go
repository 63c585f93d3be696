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

// NewsClient searches NewsAPI.
type NewsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewNewsClient(baseURL, apiKey string) *NewsClient {
	return &NewsClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type everythingResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Content     string `json:"content"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Everything returns articles matching any of keywords published since from.
func (c *NewsClient) Everything(ctx context.Context, keywords []string, from time.Time, pageSize int) ([]domain.Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("news api key not set: %w", domain.ErrConfiguration)
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	params := url.Values{
		"q":        {strings.Join(keywords, " OR ")},
		"from":     {from.UTC().Format("2006-01-02")},
		"pageSize": {strconv.Itoa(pageSize)},
		"sortBy":   {"publishedAt"},
		"language": {"en"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransientError{Op: "news search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("news search rejected api key: %w", domain.ErrUnauthorized)
	}

	var body everythingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &domain.TransientError{Op: "news search", StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return nil, &domain.TransientError{Op: "news search", StatusCode: resp.StatusCode, Err: errors.New(body.Message)}
	}

	articles := make([]domain.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		content := a.Content
		if content == "" {
			content = a.Description
		}
		articles = append(articles, domain.Article{
			Title:       a.Title,
			URL:         a.URL,
			Content:     content,
			Description: a.Description,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return articles, nil
}
