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

	w, err := bootstrap.New(ctx, domain.StageScraper)
	if err != nil {
		bootstrap.Fatal(err)
	}

	tokens := w.Credentials()
	scraper := services.NewScraperService(
		services.WithTokenEnsurer(tokens),
		services.WithPostLister(w.Reddit(tokens)),
		services.WithPostsPerSubreddit(w.Config.PostsPerSubreddit),
	)

	if err := w.RunStage(ctx, domain.StageScraper, scraper.Handle); err != nil {
		w.Logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
