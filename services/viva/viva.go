// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package viva provides the timed oral-assessment service.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the session orchestrator, completion-service
// clients, the reading supplier, durable transcript storage, and
// observability infrastructure.
//
// # Usage
//
//	cfg := viva.Config{Port: 12310, LLMBackend: "openai"}
//	svc, err := viva.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package viva

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jinterlante1206/VivaLocal/services/llm"
	"github.com/jinterlante1206/VivaLocal/services/viva/observability"
	"github.com/jinterlante1206/VivaLocal/services/viva/readings"
	"github.com/jinterlante1206/VivaLocal/services/viva/routes"
	"github.com/jinterlante1206/VivaLocal/services/viva/session"
	"github.com/jinterlante1206/VivaLocal/services/viva/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the assessment service.
//
// # Description
//
// Service abstracts the service lifecycle, enabling testing and
// alternative implementations. Run() blocks and should only be called
// once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds assessment service configuration options.
//
// # Description
//
// Config centralizes all configuration for the service. Values can be
// populated from environment variables, config files, or programmatically
// for testing. All fields are optional with defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// LLMBackend specifies the completion provider.
	// Valid values: "openai", "claude", "anthropic"
	// Default: "openai"
	LLMBackend string

	// PostgresDSN is the durable transcript store connection string.
	// If empty or unreachable, an in-memory store is used instead.
	PostgresDSN string

	// ReadingsDir is the directory serving pre-extracted reading text.
	// If empty, sessions must supply inline reading text.
	ReadingsDir string

	// DefaultDocumentRefs ground auto-recovered sessions.
	DefaultDocumentRefs []string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "viva-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	GinMode string

	// SessionSeconds overrides the total session length. Default: 600.
	SessionSeconds int

	// TurnTimeout bounds each completion call. Default: 30s.
	TurnTimeout time.Duration

	// ReaperInterval and ReaperIdleTTL configure the idle-session reaper.
	// Defaults: 5 minutes / 30 minutes.
	ReaperInterval time.Duration
	ReaperIdleTTL  time.Duration
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	llmClient     llm.CompletionClient
	orchestrator  *session.Orchestrator
	transcripts   store.TranscriptStore
	reaper        *session.Reaper
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates an assessment Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Connects the durable transcript store (falls back to in-memory)
//  5. Creates the completion client for the configured backend
//  6. Builds the session orchestrator and idle reaper
//  7. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run assessment service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the chosen completion provider
//   - Network is available for external service connections
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for sessions")
	}

	s.initTranscriptStore()

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize completion client: %w", err)
	}

	if err := s.initOrchestrator(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	if err := s.reaper.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start idle reaper: %w", err)
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting assessment server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "viva-otel-collector:4317"
	}
	cfg.EnableMetrics = true
	if cfg.SessionSeconds == 0 {
		cfg.SessionSeconds = session.DefaultTiming().TotalSeconds
	}
	if cfg.TurnTimeout == 0 {
		cfg.TurnTimeout = 30 * time.Second
	}
	if cfg.ReaperInterval == 0 {
		cfg.ReaperInterval = session.DefaultReaperConfig().Interval
	}
	if cfg.ReaperIdleTTL == 0 {
		cfg.ReaperIdleTTL = session.DefaultReaperConfig().IdleTTL
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("viva-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initTranscriptStore connects Postgres, falling back to an in-memory
// store so the service still runs without a database.
func (s *service) initTranscriptStore() {
	if s.config.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pg, err := store.NewPostgresStore(ctx, s.config.PostgresDSN)
		if err == nil {
			s.transcripts = pg
			return
		}
		slog.Warn("Postgres unavailable, falling back to in-memory transcript store",
			"error", err)
	} else {
		slog.Info("No Postgres DSN configured, using in-memory transcript store")
	}
	s.transcripts = store.NewMemoryStore()
}

// initLLMClient creates the completion client for the configured backend.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI completion backend")
	case "claude", "anthropic":
		s.llmClient, err = llm.NewAnthropicClient()
		slog.Info("Using Anthropic (Claude) completion backend")
	default:
		slog.Warn("Unknown completion backend, defaulting to openai",
			"backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOpenAIClient()
	}

	return err
}

// initOrchestrator builds the session orchestrator and its idle reaper.
func (s *service) initOrchestrator() error {
	timing := session.DefaultTiming()
	timing.TotalSeconds = s.config.SessionSeconds

	var supplier readings.Supplier
	if s.config.ReadingsDir != "" {
		supplier = readings.NewDirSupplier(s.config.ReadingsDir)
		slog.Info("Serving readings from directory", "dir", s.config.ReadingsDir)
	}

	orch, err := session.New(session.Config{
		Timing:              timing,
		TurnTimeout:         s.config.TurnTimeout,
		DefaultDocumentRefs: s.config.DefaultDocumentRefs,
	}, session.NewMemoryStore(), s.llmClient, supplier, s.transcripts)
	if err != nil {
		return err
	}
	s.orchestrator = orch

	s.reaper = session.NewReaper(orch, session.ReaperConfig{
		Interval: s.config.ReaperInterval,
		IdleTTL:  s.config.ReaperIdleTTL,
	})
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("viva-service"))

	routes.SetupRoutes(s.router, s.orchestrator)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.reaper != nil {
		s.reaper.Stop()
	}
	if s.transcripts != nil {
		s.transcripts.Close()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
