package services

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/models"
)

// Consumer-side interfaces
type UserLister interface {
	ListScannableUsers(ctx context.Context, limit int) ([]models.User, error)
}

type ScanStarter interface {
	StartScan(ctx context.Context, correlationID string, userID domain.UserID) error
}

const (
	maxScanBatch = 1000

	errorCodeInternal   = "internal_error"
	errorCodeValidation = "validation_error"
)

// SchedulerService seeds one pipeline traversal per scannable user.
type SchedulerService struct {
	users     UserLister
	publisher Publisher
	topicARN  string
	scans     ScanStarter
	batchSize int
}

type SchedulerOption func(*SchedulerService)

func WithUserLister(r UserLister) SchedulerOption {
	return func(s *SchedulerService) { s.users = r }
}

func WithSeedPublisher(p Publisher, topicARN string) SchedulerOption {
	return func(s *SchedulerService) {
		s.publisher = p
		s.topicARN = topicARN
	}
}

func WithScanStarter(r ScanStarter) SchedulerOption {
	return func(s *SchedulerService) { s.scans = r }
}

func WithScanBatchSize(n int) SchedulerOption {
	return func(s *SchedulerService) { s.batchSize = n }
}

func NewSchedulerService(opts ...SchedulerOption) *SchedulerService {
	s := &SchedulerService{batchSize: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SeedEnvelope builds the first envelope of a traversal for user.
func SeedEnvelope(user models.User) domain.Envelope {
	var keywords domain.Keywords
	for _, k := range user.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if keywords == nil {
		keywords = domain.Keywords{}
	}
	return domain.Envelope{
		UserID:        domain.UserID(user.ID),
		Keywords:      keywords,
		Persona:       strings.TrimSpace(user.Persona),
		CorrelationID: domain.NewCorrelationID(),
	}
}

// Trigger runs one scan round for up to limit users (the configured batch
// size when limit is 0). Failures are reported in the response, never as a
// Go error.
func (s *SchedulerService) Trigger(ctx context.Context, limit int) domain.InvocationResponse {
	logger := logging.FromContext(ctx).With("stage", domain.StageScheduler)

	if limit < 0 || limit > maxScanBatch {
		return errorResponse(http.StatusBadRequest, errorCodeValidation, "limit must be between 0 and 1000")
	}
	if limit == 0 {
		limit = s.batchSize
	}

	users, err := s.users.ListScannableUsers(ctx, limit)
	if err != nil {
		logger.Error("failed to load users", "error", err)
		return errorResponse(http.StatusInternalServerError, errorCodeInternal, err.Error())
	}
	logger.Info("found users to scan", "count", len(users))

	var (
		mu  sync.Mutex
		ids []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, user := range users {
		env := SeedEnvelope(user)
		if err := env.Validate(); err != nil {
			logger.Warn("skipping user", "error", err)
			continue
		}
		g.Go(func() error {
			if err := s.seed(gctx, env); err != nil {
				return err
			}
			mu.Lock()
			ids = append(ids, env.CorrelationID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("failed to publish scan", "error", err)
		return errorResponse(http.StatusInternalServerError, errorCodeInternal, err.Error())
	}

	return domain.InvocationResponse{
		StatusCode: http.StatusOK,
		Body: domain.ScanSummary{
			Status:         "success",
			ProcessedCount: len(ids),
			CorrelationIDs: ids,
		},
	}
}

func (s *SchedulerService) seed(ctx context.Context, env domain.Envelope) error {
	logger := logging.ForEnvelope(logging.FromContext(ctx), domain.StageScheduler, env)

	if s.scans != nil {
		if err := s.scans.StartScan(ctx, env.CorrelationID, env.UserID); err != nil {
			logger.Warn("failed to record scan start", "error", err)
		}
	}

	messageID, err := s.publisher.Publish(ctx, s.topicARN, env)
	if err != nil {
		return err
	}
	logger.Info("published scan", "message_id", messageID, "keywords", len(env.Keywords))
	return nil
}

// RunEvery triggers a scan immediately and then on every tick until ctx is
// cancelled.
func (s *SchedulerService) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.Trigger(ctx, 0)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func errorResponse(status int, code, message string) domain.InvocationResponse {
	return domain.InvocationResponse{
		StatusCode: status,
		Body:       domain.ErrorBody{Error: code, Message: message},
	}
}
