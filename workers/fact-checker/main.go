package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"verishield-pipeline/bootstrap"
	"verishield-pipeline/domain"
	"verishield-pipeline/repositories"
	"verishield-pipeline/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := bootstrap.New(ctx, domain.StageFactCheck)
	if err != nil {
		bootstrap.Fatal(err)
	}

	cfg := w.Config
	opts := []services.VerificationOption{
		services.WithFactChecker(repositories.NewFactCheckClient(cfg.FactCheckURL, cfg.FactCheckAPIKey, cfg.FactCheckLanguage)),
	}
	if cfg.OpenAIAPIKey != "" {
		opts = append(opts, services.WithThreatSynthesizer(w.Chat()))
	}
	verification := services.NewVerificationService(opts...)

	if err := w.RunStage(ctx, domain.StageFactCheck, verification.Handle); err != nil {
		w.Logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
