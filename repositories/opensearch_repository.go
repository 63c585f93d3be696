package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"verishield-pipeline/models"
)

type OpenSearchRepository struct {
	client *opensearch.Client
	index  string
}

func NewOpenSearchRepository(client *opensearch.Client, index string) *OpenSearchRepository {
	if index == "" {
		index = "threats"
	}
	return &OpenSearchRepository{client: client, index: index}
}

// IndexThreat upserts threat under its id so redeliveries overwrite the same
// document.
func (r *OpenSearchRepository) IndexThreat(ctx context.Context, threat models.Threat) error {
	document := map[string]interface{}{
		"user_id":                  threat.UserID,
		"correlation_id":           threat.CorrelationID,
		"description":              threat.Description,
		"source_url":               threat.SourceURL,
		"source":                   threat.Source,
		"status":                   threat.Status,
		"fact_checker_url":         threat.FactCheckerURL,
		"fact_checker_explanation": threat.FactCheckerExplanation,
		"created_at":               time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      r.index,
		DocumentID: threat.ID,
		Body:       strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to execute index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing threat %s: %s", threat.ID, res.String())
	}
	return nil
}
