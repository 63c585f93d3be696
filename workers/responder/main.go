package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"verishield-pipeline/api"
	"verishield-pipeline/bootstrap"
	"verishield-pipeline/domain"
	"verishield-pipeline/repositories"
	"verishield-pipeline/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := bootstrap.New(ctx, domain.StageResponder)
	if err != nil {
		bootstrap.Fatal(err)
	}

	db, err := w.OpenDatabase()
	if err != nil {
		bootstrap.Fatal(err)
	}
	responder := services.NewResponderService(w.Chat(), repositories.NewDBRepository(db, w.Config.DBBatchSize))

	server := api.NewServer(api.WithResponseGenerator(responder), api.WithLogger(w.Logger))
	w.Logger.Info("responder listening", "address", w.Config.HTTPAddress)
	if err := server.Run(ctx, w.Config.HTTPAddress); err != nil {
		w.Logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
