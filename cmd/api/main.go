package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/habat-tech/todrive/internal/app"
	"github.com/habat-tech/todrive/internal/config"
	"github.com/habat-tech/todrive/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	// No operator can complete a browser consent inside Lambda.
	cfg.Auth.Interactive = false

	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logging: %v\n", err)
		os.Exit(1)
	}

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("initializing application", "error", err)
		os.Exit(1)
	}
	lambda.Start(application.HandleRequest)
}
