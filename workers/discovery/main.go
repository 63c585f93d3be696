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

	w, err := bootstrap.New(ctx, domain.StageDiscovery)
	if err != nil {
		bootstrap.Fatal(err)
	}

	reddit := w.Reddit(w.Credentials())
	discovery := services.NewDiscoveryService(
		services.WithSubredditSearcher(reddit),
		services.WithChatCompleter(w.Chat()),
		services.WithDefaultSubreddits(w.Config.DefaultSubreddits),
		services.WithMinSubscribers(w.Config.MinSubscribers),
	)

	if err := w.RunStage(ctx, domain.StageDiscovery, discovery.Handle); err != nil {
		w.Logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
