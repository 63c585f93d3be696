package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/models"
)

// Consumer-side interfaces
type ThreatStore interface {
	InsertThreat(ctx context.Context, threat *models.Threat) (bool, error)
	InsertThreatMedia(ctx context.Context, media []models.ThreatMedia) error
}

type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type ThreatIndexer interface {
	IndexThreat(ctx context.Context, threat models.Threat) error
}

type ScanCompleter interface {
	CompleteScan(ctx context.Context, correlationID string, threats int) error
}

type MediaArchiver interface {
	Capture(ctx context.Context, threat models.Threat) ([]models.ThreatMedia, error)
}

var threatNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://verishield.io/threats"))

// ThreatID is stable across redeliveries of the same threat within one scan.
func ThreatID(correlationID string, entry domain.ThreatEntry) string {
	name := correlationID + domain.StageWriter + entry.SourceURL + entry.Description
	return uuid.NewSHA1(threatNamespace, []byte(name)).String()
}

// WriterService persists threats. Postgres is authoritative; search indexing,
// scan status and media capture are best effort.
type WriterService struct {
	store   ThreatStore
	claims  IdempotencyStore
	indexer ThreatIndexer
	scans   ScanCompleter
	media   MediaArchiver
	ttl     time.Duration
	now     func() time.Time
}

type WriterOption func(*WriterService)

func WithThreatStore(r ThreatStore) WriterOption {
	return func(s *WriterService) { s.store = r }
}

func WithIdempotencyStore(r IdempotencyStore, ttl time.Duration) WriterOption {
	return func(s *WriterService) {
		s.claims = r
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithThreatIndexer(r ThreatIndexer) WriterOption {
	return func(s *WriterService) { s.indexer = r }
}

func WithScanCompleter(r ScanCompleter) WriterOption {
	return func(s *WriterService) { s.scans = r }
}

// WithMediaArchiver enables media capture.
func WithMediaArchiver(m MediaArchiver) WriterOption {
	return func(s *WriterService) { s.media = m }
}

func NewWriterService(opts ...WriterOption) *WriterService {
	s := &WriterService{
		ttl: 24 * time.Hour,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle writes every threat of the envelope. A storage failure fails the
// whole record; threats already written are skipped on redelivery.
func (s *WriterService) Handle(ctx context.Context, env domain.Envelope) (domain.Envelope, error) {
	logger := logging.FromContext(ctx)
	written := 0

	for _, entry := range env.Payload.Threats {
		if strings.TrimSpace(entry.Description) == "" {
			logger.Warn("skipping threat without description", "source_url", entry.SourceURL)
			continue
		}

		threat := models.NewThreat(ThreatID(env.CorrelationID, entry), env.UserID, env.CorrelationID, entry)
		threat.CreatedAt = s.now().UTC()

		inserted, err := s.write(ctx, &threat)
		if err != nil {
			return env, err
		}
		if !inserted {
			logger.Debug("threat already stored", "threat_id", threat.ID)
			continue
		}
		written++

		s.index(ctx, threat)
		s.captureMedia(ctx, threat)
	}

	if s.scans != nil && env.CorrelationID != "" {
		if err := s.scans.CompleteScan(ctx, env.CorrelationID, written); err != nil {
			logger.Warn("failed to update scan status", "error", err)
		}
	}
	logger.Info("stored threats", "received", len(env.Payload.Threats), "written", written)
	return env, nil
}

// write inserts the threat. The Redis key is advisory: one left behind by a
// failed attempt must not hide the row, so the insert always runs and the
// primary key conflict decides.
func (s *WriterService) write(ctx context.Context, threat *models.Threat) (bool, error) {
	logger := logging.FromContext(ctx)
	key := domain.StageWriter + ":" + threat.ID

	claimed := false
	if s.claims != nil {
		ok, err := s.claims.Claim(ctx, key, s.ttl)
		switch {
		case err != nil:
			logger.Warn("idempotency store unavailable, relying on database", "error", err)
		case !ok:
			logger.Debug("idempotency key already present, checking database", "key", key)
		default:
			claimed = true
		}
	}

	inserted, err := s.store.InsertThreat(ctx, threat)
	if err != nil {
		if claimed {
			if rErr := s.claims.Release(ctx, key); rErr != nil {
				logger.Warn("failed to release idempotency key", "key", key, "error", rErr)
			}
		}
		return false, fmt.Errorf("failed to store threat %s: %w", threat.ID, err)
	}
	return inserted, nil
}

func (s *WriterService) index(ctx context.Context, threat models.Threat) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexThreat(ctx, threat); err != nil {
		logging.FromContext(ctx).Warn("failed to index threat", "threat_id", threat.ID, "error", err)
	}
}

func (s *WriterService) captureMedia(ctx context.Context, threat models.Threat) {
	if s.media == nil {
		return
	}
	logger := logging.FromContext(ctx)
	media, err := s.media.Capture(ctx, threat)
	if err != nil {
		logger.Warn("media capture failed", "threat_id", threat.ID, "error", err)
		return
	}
	if len(media) == 0 {
		return
	}
	if err := s.store.InsertThreatMedia(ctx, media); err != nil {
		logger.Warn("failed to store threat media", "threat_id", threat.ID, "error", err)
	}
}
