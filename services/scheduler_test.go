package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"verishield-pipeline/domain"
	"verishield-pipeline/models"
)

type MockUserLister struct {
	mock.Mock
}

func (m *MockUserLister) ListScannableUsers(ctx context.Context, limit int) ([]models.User, error) {
	args := m.Called(ctx, limit)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

type MockScanStarter struct {
	mock.Mock
}

func (m *MockScanStarter) StartScan(ctx context.Context, correlationID string, userID domain.UserID) error {
	args := m.Called(ctx, correlationID, userID)
	return args.Error(0)
}

const seedTopic = "arn:aws:sns:us-east-1:000000000000:user-scan"

func TestSeedEnvelope(t *testing.T) {
	env := SeedEnvelope(models.User{ID: "u-1", Keywords: domain.Keywords{" acme ", "", "recall"}, Persona: " brand manager "})

	assert.Equal(t, domain.UserID("u-1"), env.UserID)
	assert.Equal(t, domain.Keywords{"acme", "recall"}, env.Keywords)
	assert.Equal(t, "brand manager", env.Persona)
	assert.True(t, strings.HasPrefix(env.CorrelationID, "corr-"))
	assert.NotEqual(t, env.CorrelationID, SeedEnvelope(models.User{ID: "u-1"}).CorrelationID)
}

func TestScheduler_PublishesOneEnvelopePerUser(t *testing.T) {
	users := new(MockUserLister)
	pub := new(MockPublisher)
	scans := new(MockScanStarter)

	users.On("ListScannableUsers", mock.Anything, 2).Return([]models.User{
		{ID: "u-1", Keywords: domain.Keywords{"acme"}},
		{ID: "u-2", Keywords: domain.Keywords{"solar"}, Persona: "analyst"},
	}, nil)
	pub.On("Publish", mock.Anything, seedTopic, mock.MatchedBy(func(env domain.Envelope) bool {
		return env.CorrelationID != "" && (env.UserID == "u-1" || env.UserID == "u-2")
	})).Return("msg", nil).Twice()
	scans.On("StartScan", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	svc := NewSchedulerService(WithUserLister(users), WithSeedPublisher(pub, seedTopic), WithScanStarter(scans), WithScanBatchSize(2))
	resp := svc.Trigger(context.TODO(), 0)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary, ok := resp.Body.(domain.ScanSummary)
	require.True(t, ok)
	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 2, summary.ProcessedCount)
	assert.Len(t, summary.CorrelationIDs, 2)
	pub.AssertExpectations(t)
	scans.AssertExpectations(t)
}

func TestScheduler_NoUsers(t *testing.T) {
	users := new(MockUserLister)
	users.On("ListScannableUsers", mock.Anything, 1).Return([]models.User{}, nil)

	resp := NewSchedulerService(WithUserLister(users), WithSeedPublisher(new(MockPublisher), seedTopic)).Trigger(context.TODO(), 0)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, resp.Body.(domain.ScanSummary).ProcessedCount)
}

func TestScheduler_DatabaseFailureIsSystemic(t *testing.T) {
	users := new(MockUserLister)
	users.On("ListScannableUsers", mock.Anything, 5).Return(nil, errors.New("connection refused"))

	resp := NewSchedulerService(WithUserLister(users)).Trigger(context.TODO(), 5)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, ok := resp.Body.(domain.ErrorBody)
	require.True(t, ok)
	assert.Equal(t, "internal_error", body.Error)
	assert.Contains(t, body.Message, "connection refused")
}

func TestScheduler_PublishFailureIsSystemic(t *testing.T) {
	users := new(MockUserLister)
	pub := new(MockPublisher)
	users.On("ListScannableUsers", mock.Anything, 1).Return([]models.User{{ID: "u-1"}}, nil)
	pub.On("Publish", mock.Anything, seedTopic, mock.Anything).Return("", errors.New("sns unavailable"))

	resp := NewSchedulerService(WithUserLister(users), WithSeedPublisher(pub, seedTopic)).Trigger(context.TODO(), 0)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestScheduler_SkipsUsersWithoutID(t *testing.T) {
	users := new(MockUserLister)
	pub := new(MockPublisher)
	users.On("ListScannableUsers", mock.Anything, 1).Return([]models.User{{ID: " "}}, nil)

	resp := NewSchedulerService(WithUserLister(users), WithSeedPublisher(pub, seedTopic)).Trigger(context.TODO(), 0)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_InvalidLimit(t *testing.T) {
	users := new(MockUserLister)

	resp := NewSchedulerService(WithUserLister(users)).Trigger(context.TODO(), -1)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", resp.Body.(domain.ErrorBody).Error)
	users.AssertNotCalled(t, "ListScannableUsers", mock.Anything, mock.Anything)
}
