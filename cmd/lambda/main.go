package main

import (
	"context"
	"log"

	"github.com/abearman/mindful-sub000/api"
	"github.com/abearman/mindful-sub000/api/lambdaapi"
	"github.com/abearman/mindful-sub000/bootstrap"
	"github.com/abearman/mindful-sub000/config"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Clients are built once per execution environment and reused across
	// invocations.
	ctx := context.Background()
	opts, err := bootstrap.Options(ctx, cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to build dependencies", zap.Error(err))
	}

	mindfulAPI, err := api.NewMindfulAPI(opts, ctx)
	if err != nil {
		logger.Fatal("Failed to create mindful api", zap.Error(err))
	}

	handler := lambdaapi.NewHandler(mindfulAPI.RestHandler(), logger.Named("lambda"))
	lambda.Start(handler.Handle)
}
