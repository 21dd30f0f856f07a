package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"mortgage-criteria-chat/handler"
	"mortgage-criteria-chat/internal/domain"
	"mortgage-criteria-chat/internal/integrations/backend"
	"mortgage-criteria-chat/internal/integrations/paramstore"
	"mortgage-criteria-chat/internal/lenders"
	"mortgage-criteria-chat/internal/metrics"
	"mortgage-criteria-chat/internal/repository"
	"mortgage-criteria-chat/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	backendURL := envString("PYTHON_BACKEND_URL", backend.DefaultBaseURL)
	defaultResults := envInt("DEFAULT_NUM_RESULTS", domain.DefaultResultCount)
	lenderParam := os.Getenv("LENDER_CONFIG_PARAM")
	lenderFile := os.Getenv("LENDER_CONFIG_FILE")
	exchangeTable := os.Getenv("EXCHANGE_TABLE")
	idleMinutes := envInt("SESSION_IDLE_MINUTES", 60)
	listenAddr := envString("LISTEN_ADDR", ":3000")
	onLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	collectors := metrics.New()

	// ---- Clients ----
	backendClient, err := backend.NewClient(backendURL)
	if err != nil {
		slog.Error("failed to create backend client", "err", err)
		os.Exit(1)
	}

	var awsCfg aws.Config
	if lenderParam != "" || exchangeTable != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
	}

	var source lenders.Source = backendClient
	switch {
	case lenderParam != "":
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		source, err = lenders.NewParameterSource(ssmClient, lenderParam)
		if err != nil {
			slog.Error("failed to create lender parameter source", "err", err)
			os.Exit(1)
		}
	case lenderFile != "":
		source = lenders.FileSource{Path: lenderFile}
	}
	resolver := lenders.NewResolver(source, lenders.WithObserver(collectors))

	dispatcher, err := usecase.NewDispatcher(backendClient)
	if err != nil {
		slog.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}

	sessionOpts := []usecase.Option{usecase.WithObserver(collectors)}
	if exchangeTable != "" {
		archive, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), exchangeTable)
		if err != nil {
			slog.Error("failed to create exchange archive", "err", err)
			os.Exit(1)
		}
		sessionOpts = append(sessionOpts, usecase.WithRecorder(archive))
	}

	// ---- Handler ----
	defaults := domain.SearchParameters{ResultCount: defaultResults}
	registry, err := handler.NewRegistry(
		handler.OrchestratorFactory(resolver, dispatcher, defaults, sessionOpts...),
		time.Duration(idleMinutes)*time.Minute,
		handler.WithSessionCounter(collectors),
	)
	if err != nil {
		slog.Error("failed to create session registry", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(registry, backendClient)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if onLambda {
		lambda.Start(h.Handle)
		return
	}

	slog.Info("serving locally", "addr", listenAddr, "backend", backendClient.BaseURL())
	if err := handler.NewLocalServer(h, collectors.Handler()).Start(listenAddr); err != nil {
		slog.Error("local server stopped", "err", err)
		os.Exit(1)
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
