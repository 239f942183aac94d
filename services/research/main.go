// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianResearch/services/research/config"
	"github.com/AleutianAI/AleutianResearch/services/research/handlers"
	"github.com/AleutianAI/AleutianResearch/services/research/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/pipeline"
	"github.com/AleutianAI/AleutianResearch/services/research/retrieval"
	"github.com/AleutianAI/AleutianResearch/services/research/store"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("research-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildSearcher picks the corpus backend. A valid Weaviate URL selects the
// production backend; anything else falls back to the in-memory index.
func buildSearcher(weaviateURL string) pipeline.Searcher {
	weaviateURL = strings.Trim(weaviateURL, "\"' ")
	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running with the in-memory corpus.")
		return retrieval.NewMemorySearcher()
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running with the in-memory corpus.",
			"url", weaviateURL, "error", err)
		return retrieval.NewMemorySearcher()
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client, falling back to in-memory corpus", "error", err)
		return retrieval.NewMemorySearcher()
	}

	searcher := retrieval.NewWeaviateSearcher(client)
	if err := searcher.EnsureSchema(context.Background()); err != nil {
		slog.Error("Failed to ensure Weaviate schema", "error", err)
	}
	return searcher
}

// buildLLMClient configures the generation backend from config, wrapping it
// with the rate limiter when one is configured.
func buildLLMClient(cfg config.LLMConfig) (llm.LLMClient, error) {
	var client llm.LLMClient
	var err error

	switch cfg.Backend {
	case "openai":
		client, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		client, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "template":
		client = llm.NewTemplateClient()
		slog.Info("Using template backend (deterministic drafting, no generation)")
	default:
		slog.Warn("LLM backend not set or invalid, defaulting to ollama", "backend", cfg.Backend)
		client, err = llm.NewOllamaClient()
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerSecond > 0 {
		client = llm.NewRateLimitedClient(client, cfg.RequestsPerSecond, cfg.Burst)
	}
	return client, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("RESEARCH_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	searcher := buildSearcher(cfg.Corpus.WeaviateURL)

	log.Println("Configuring the LLM Client")
	llmClient, err := buildLLMClient(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	runStore, err := store.Open(store.Config{
		Path:       config.ExpandPath(cfg.Store.Path),
		SyncWrites: cfg.Store.SyncWrites,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to open the run store: %v", err)
	}
	defer runStore.Close()

	pipe, err := pipeline.NewPipeline(pipeline.Config{
		Searcher: searcher,
		LLM:      llmClient,
		Emitter:  observability.NewLogEmitter(logger),
		Metrics:  observability.DefaultMetrics,
		Logger:   logger,
		Vetting: pipeline.VettingPolicy{
			KeepTop:             cfg.Vetting.KeepTop,
			MinScore:            cfg.Vetting.MinScore,
			PrimaryConnector:    cfg.Vetting.PrimaryConnector,
			SecondaryConnectors: cfg.Vetting.SecondaryConnectors,
		},
	})
	if err != nil {
		log.Fatalf("Failed to build the pipeline: %v", err)
	}

	svc := handlers.NewRunService(pipe, runStore, logger)

	router := gin.Default()
	router.Use(otelgin.Middleware("research-service"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.SetupRoutes(router, svc)
	log.Println("started up the container")

	log.Println("Starting the research server on port ", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
