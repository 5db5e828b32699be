package main

import (
	"log"
	"os"

	"fractalscan/app"
	"fractalscan/internal"
	"fractalscan/internal/config"
	scanning "fractalscan/internal/fractal"
	scanlambda "fractalscan/internal/lambda"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CloudWatch wants one JSON object per line
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level), os.Stdout)

	// Each invocation is independent; scan history is not kept here
	scanner := scanning.NewScanner()
	service := app.NewScanService(scanner, scanning.NewBatchScanner(scanner, 1), nil, logger)

	h, err := scanlambda.NewHandler(service, cfg.Lambda.MaxLogs, logger)
	if err != nil {
		log.Fatalf("Failed to create handler: %v", err)
	}

	lambda.Start(h.Handle)
}
