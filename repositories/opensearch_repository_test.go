package repositories

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verishield-pipeline/models"
)

type mockTransport struct {
	Response *http.Response
	Error    error
	Request  *http.Request
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.Request = req
	return m.Response, m.Error
}

func TestOpenSearchRepository_IndexThreat(t *testing.T) {
	transport := &mockTransport{Response: &http.Response{
		StatusCode: 201,
		Body:       io.NopCloser(strings.NewReader(`{"result":"created"}`)),
		Header:     make(http.Header),
	}}
	client, err := opensearch.NewClient(opensearch.Config{Transport: transport})
	require.NoError(t, err)

	repo := NewOpenSearchRepository(client, "")
	err = repo.IndexThreat(context.TODO(), models.Threat{ID: "t-1", UserID: "u-1", Description: "desc"})

	assert.NoError(t, err)
	require.NotNil(t, transport.Request)
	assert.Equal(t, "/threats/_doc/t-1", transport.Request.URL.Path)
	assert.Equal(t, http.MethodPut, transport.Request.Method)
}

func TestOpenSearchRepository_IndexThreat_Error(t *testing.T) {
	transport := &mockTransport{Response: &http.Response{
		StatusCode: 500,
		Body:       io.NopCloser(strings.NewReader(`{"error":"internal error"}`)),
		Header:     make(http.Header),
	}}
	client, _ := opensearch.NewClient(opensearch.Config{Transport: transport})

	repo := NewOpenSearchRepository(client, "threats")
	err := repo.IndexThreat(context.TODO(), models.Threat{ID: "t-1"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error indexing threat t-1")
}
