package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"verishield-pipeline/api"
	"verishield-pipeline/bootstrap"
	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
	"verishield-pipeline/repositories"
	"verishield-pipeline/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := bootstrap.New(ctx, domain.StageScheduler)
	if err != nil {
		bootstrap.Fatal(err)
	}
	cfg := w.Config

	db, err := w.OpenDatabase()
	if err != nil {
		bootstrap.Fatal(err)
	}

	opts := []services.SchedulerOption{
		services.WithUserLister(repositories.NewDBRepository(db, cfg.DBBatchSize)),
		services.WithSeedPublisher(w.Publisher(), cfg.OutputTopicARN),
		services.WithScanBatchSize(cfg.ScanBatchSize),
	}
	if cfg.ScanTable != "" {
		opts = append(opts, services.WithScanStarter(repositories.NewScanStatusStore(dynamodb.NewFromConfig(w.AWS), cfg.ScanTable)))
	}
	scheduler := services.NewSchedulerService(opts...)

	go scheduler.RunEvery(logging.WithLogger(ctx, w.Logger), cfg.ScanInterval)

	server := api.NewServer(api.WithScanTrigger(scheduler), api.WithLogger(w.Logger))
	w.Logger.Info("scheduler listening", "address", cfg.HTTPAddress, "interval", cfg.ScanInterval)
	if err := server.Run(ctx, cfg.HTTPAddress); err != nil {
		w.Logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
