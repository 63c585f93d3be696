package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"verishield-pipeline/bootstrap"
	"verishield-pipeline/domain"
	"verishield-pipeline/repositories"
	"verishield-pipeline/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := bootstrap.New(ctx, domain.StageWriter)
	if err != nil {
		bootstrap.Fatal(err)
	}
	cfg := w.Config

	db, err := w.OpenDatabase()
	if err != nil {
		bootstrap.Fatal(err)
	}
	dbRepo := repositories.NewDBRepository(db, cfg.DBBatchSize)

	opts := []services.WriterOption{
		services.WithThreatStore(dbRepo),
		services.WithIdempotencyStore(repositories.NewRedisClient(cfg.RedisHost, cfg.RedisPort), cfg.IdempotencyTTL),
	}
	if cfg.ScanTable != "" {
		opts = append(opts, services.WithScanCompleter(repositories.NewScanStatusStore(dynamodb.NewFromConfig(w.AWS), cfg.ScanTable)))
	}

	osClient, err := w.OpenSearch()
	if err != nil {
		bootstrap.Fatal(err)
	}
	if osClient != nil {
		opts = append(opts, services.WithThreatIndexer(repositories.NewOpenSearchRepository(osClient, cfg.OpenSearchIndex)))
	}

	if cfg.MediaCaptureEnabled {
		s3Client := s3.NewFromConfig(w.AWS, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointURL != ""
		})
		capturer := services.NewMediaCapturer(
			repositories.NewPageFetcher(cfg.RedditUserAgent),
			repositories.NewS3Repository(s3Client, cfg.MediaBucket),
			0,
		)
		opts = append(opts, services.WithMediaArchiver(capturer))
	}

	writer := services.NewWriterService(opts...)

	if err := w.RunStage(ctx, domain.StageWriter, writer.Handle); err != nil {
		w.Logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
