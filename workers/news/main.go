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

	w, err := bootstrap.New(ctx, domain.StageNews)
	if err != nil {
		bootstrap.Fatal(err)
	}

	opts := []services.NewsOption{
		services.WithArticleSearcher(repositories.NewNewsClient(w.Config.NewsAPIBaseURL, w.Config.NewsAPIKey)),
	}
	if w.Config.OpenAIAPIKey != "" {
		opts = append(opts, services.WithKeywordGenerator(w.Chat()))
	}
	news := services.NewNewsService(opts...)

	if err := w.RunStage(ctx, domain.StageNews, news.Handle); err != nil {
		w.Logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
