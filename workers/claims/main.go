package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"verishield-pipeline/bootstrap"
	"verishield-pipeline/domain"
	"verishield-pipeline/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := bootstrap.New(ctx, domain.StageClaims)
	if err != nil {
		bootstrap.Fatal(err)
	}

	claims := services.NewClaimsService(services.NewClaimExtractor(w.Chat()))

	if err := w.RunStage(ctx, domain.StageClaims, claims.Handle); err != nil {
		w.Logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
