package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/dhanushrs1/HDC-File/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("hdcinemabot: %v", err)
	}
}

func run(ctx context.Context) error {
	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	application.Log.Info("Bot is starting...")
	if err := application.Run(ctx); err != nil {
		return err
	}
	application.Log.Info("Bot has stopped.")
	return nil
}
