package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := mustBootstrapOrderAPI()
	defer app.Close()

	if err := app.Run(); err != nil && err != context.Canceled {
		slog.Error("order-api stopped", "error", err.Error())
		os.Exit(1)
	}
}
