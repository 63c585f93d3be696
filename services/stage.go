package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/metrics"
)

// Consumer-side interfaces
type Publisher interface {
	Publish(ctx context.Context, topicARN string, env domain.Envelope) (string, error)
}

type Consumer interface {
	Receive(ctx context.Context) ([]domain.Record, error)
	Ack(ctx context.Context, records []domain.Record) error
}

// Handler enriches one envelope. A returned error fails the whole record;
// per-unit failures must be degraded inside the handler.
type Handler func(ctx context.Context, env domain.Envelope) (domain.Envelope, error)

// ProcessUnits runs fn for every unit concurrently and waits for all of them.
// A failed unit is replaced by degrade(unit, err). Output order matches input
// order.
func ProcessUnits[In, Out any](ctx context.Context, stage string, units []In, fn func(context.Context, In) (Out, error), degrade func(In, error) Out) []Out {
	out := make([]Out, len(units))
	logger := logging.FromContext(ctx)

	var wg sync.WaitGroup
	for i, unit := range units {
		wg.Add(1)
		go func(i int, unit In) {
			defer wg.Done()
			result, err := runUnit(ctx, unit, fn)
			if err != nil {
				logger.Warn("unit failed, using degraded result", "unit", i, "error", err)
				metrics.DegradedUnit(stage)
				out[i] = degrade(unit, err)
				return
			}
			out[i] = result
		}(i, unit)
	}
	wg.Wait()
	return out
}

func runUnit[In, Out any](ctx context.Context, unit In, fn func(context.Context, In) (Out, error)) (result Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit panicked: %v", r)
		}
	}()
	return fn(ctx, unit)
}

// RecordFailure is an inbound record that must be redelivered.
type RecordFailure struct {
	Record domain.Record
	Err    error
}

type BatchResult struct {
	Succeeded []domain.Record
	Failed    []RecordFailure
	Outputs   []domain.Envelope
}

// Stage applies a handler to every record of a batch and publishes one
// outbound envelope per successfully handled record.
type Stage struct {
	name      string
	topicARN  string
	handler   Handler
	publisher Publisher
	logger    *slog.Logger
}

type StageOption func(*Stage)

func WithPublisher(p Publisher, topicARN string) StageOption {
	return func(s *Stage) {
		s.publisher = p
		s.topicARN = topicARN
	}
}

func WithStageLogger(l *slog.Logger) StageOption {
	return func(s *Stage) { s.logger = l }
}

func NewStage(name string, handler Handler, opts ...StageOption) *Stage {
	s := &Stage{
		name:    name,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stage) Name() string {
	return s.name
}

type recordOutcome struct {
	record domain.Record
	output domain.Envelope
	err    error
}

// HandleBatch processes records concurrently. A record fails when its
// envelope is invalid, its handler returns an error or its publish fails.
func (s *Stage) HandleBatch(ctx context.Context, records []domain.Record) BatchResult {
	ctx = logging.WithLogger(ctx, s.logger)
	outcomes := ProcessUnits(ctx, s.name, records,
		func(ctx context.Context, rec domain.Record) (recordOutcome, error) {
			out, err := s.handleRecord(ctx, rec)
			return recordOutcome{record: rec, output: out, err: err}, nil
		},
		func(rec domain.Record, err error) recordOutcome {
			return recordOutcome{record: rec, err: err}
		},
	)

	var result BatchResult
	for _, o := range outcomes {
		if o.err != nil {
			result.Failed = append(result.Failed, RecordFailure{Record: o.record, Err: o.err})
			continue
		}
		result.Succeeded = append(result.Succeeded, o.record)
		result.Outputs = append(result.Outputs, o.output)
	}
	return result
}

func (s *Stage) handleRecord(ctx context.Context, rec domain.Record) (out domain.Envelope, err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.ObserveRecord(s.name, time.Since(start), outcome)
	}()

	env, err := domain.ParseEnvelope(rec.Body)
	if err != nil {
		s.logger.Error("rejecting invalid envelope", "stage", s.name, "message_id", rec.ID, "error", err)
		return domain.Envelope{}, err
	}
	if env.CorrelationID == "" {
		env.CorrelationID = rec.Attributes[domain.AttrCorrelationID]
	}
	env = env.WithCorrelationID()

	logger := logging.ForEnvelope(s.logger, s.name, env)
	ctx = logging.WithLogger(ctx, logger)
	logger.Info("processing envelope", "message_id", rec.ID)

	out, err = s.handler(ctx, env)
	if err != nil {
		logger.Error("handler failed", "error", err)
		return domain.Envelope{}, err
	}
	out.UserID = env.UserID
	out.CorrelationID = env.CorrelationID

	if s.publisher != nil && s.topicARN != "" {
		messageID, err := s.publisher.Publish(ctx, s.topicARN, out)
		if err != nil {
			logger.Error("publish failed", "topic", s.topicARN, "error", err)
			return domain.Envelope{}, err
		}
		logger.Info("published envelope", "topic", s.topicARN, "message_id", messageID)
	}
	return out, nil
}

// Runner is the receive, handle, acknowledge loop of one worker.
type Runner struct {
	consumer Consumer
	stage    *Stage
	logger   *slog.Logger
	backoff  time.Duration
}

func NewRunner(consumer Consumer, stage *Stage, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		consumer: consumer,
		stage:    stage,
		logger:   logger,
		backoff:  2 * time.Second,
	}
}

// Run polls until ctx is cancelled. Only succeeded records are acknowledged;
// failed ones become visible again after the queue's visibility timeout.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("worker started", "stage", r.stage.Name())
	for {
		if ctx.Err() != nil {
			r.logger.Info("worker stopping", "stage", r.stage.Name())
			return nil
		}

		records, err := r.consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Error("failed to receive messages", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(r.backoff):
			}
			continue
		}
		if len(records) == 0 {
			continue
		}

		r.process(ctx, records)
	}
}

func (r *Runner) process(ctx context.Context, records []domain.Record) {
	// Finish the batch even if shutdown starts mid-way.
	ctx = context.WithoutCancel(ctx)
	result := r.stage.HandleBatch(ctx, records)

	for _, f := range result.Failed {
		r.logger.Warn("record left for redelivery", "message_id", f.Record.ID, "error", f.Err)
	}
	if len(result.Succeeded) == 0 {
		return
	}
	if err := r.consumer.Ack(ctx, result.Succeeded); err != nil {
		r.logger.Error("failed to delete messages", "error", err)
	}
}
