// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guardian provides the elevated-privilege session service for
// AleutianGuard.
//
// This package contains the main Guardian type that coordinates all
// components of the service: HTTP routing, the dangerous-mode session
// controller, the command risk classifier, the notification engine, and
// observability infrastructure.
//
// # Enterprise Integration
//
// The guardian supports dependency injection via extensions.ServiceOptions,
// enabling AleutianEnterprise to provide custom implementations of:
//   - AuthProvider: Custom authentication (JWT, API keys)
//   - AuthzProvider: Role-based access control
//   - AuditLogger: Compliance audit logging
//   - Classifier: Custom command risk classification
//
// # Usage
//
// Open source (uses embedded classifier and in-memory audit trail):
//
//	cfg := guardian.Config{Port: 12230}
//	svc, err := guardian.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
//
// Enterprise (with custom implementations):
//
//	opts := &extensions.ServiceOptions{
//	    AuthProvider: enterpriseAuth,
//	    AuditLogger:  enterpriseAudit,
//	}
//	svc, err := guardian.New(cfg, opts)
//
// # Import Path
//
// Enterprise imports this package as:
//
//	import "github.com/AleutianAI/AleutianGuard/services/guardian"
package guardian

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/audit"
	"github.com/AleutianAI/AleutianGuard/services/guardian/classify"
	"github.com/AleutianAI/AleutianGuard/services/guardian/dangerous"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/notify"
	"github.com/AleutianAI/AleutianGuard/services/guardian/observability"
	"github.com/AleutianAI/AleutianGuard/services/guardian/routes"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the guardian service.
//
// # Description
//
// Service abstracts the guardian lifecycle, enabling testing and
// alternative implementations. The interface follows the minimal surface
// area principle - only essential lifecycle methods are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if server fails to start or encounters fatal error
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Assumptions
	//
	//   - Caller will not modify the router
	Router() *gin.Engine

	// Shutdown stops the background sweeps and flushes the tracer.
	// Idempotent; safe to call from a signal handler.
	Shutdown(ctx context.Context)
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds guardian configuration options.
//
// # Description
//
// Config centralizes all configuration for the guardian service. Values
// can be populated from environment variables, config files, or
// programmatically for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults.
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and webhook sink
//	cfg := Config{
//	    Port:       12230,
//	    WebhookURL: "https://hooks.example.com/guardian",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12230
	Port int

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// DisableTracing turns off OTLP trace export. Useful for tests and
	// standalone deployments without a collector.
	DisableTracing bool

	// EnableMetrics enables the Prometheus metrics singleton.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// WebhookURL is the endpoint for webhook notification delivery.
	// If empty, the webhook channel is disabled.
	WebhookURL string

	// WebhookRatePerSecond caps outbound webhook posts. Default: 1/s
	// with a burst of 5.
	WebhookRatePerSecond float64

	// Session overrides the dangerous-mode limits. Nil uses
	// dangerous.DefaultConfig().
	Session *dangerous.Config
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - Dangerous-mode session controller
//   - Embedded command risk classifier
//   - Notification engine with channel adapters
//   - OpenTelemetry tracing
//   - Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	opts          extensions.ServiceOptions
	router        *gin.Engine
	controller    *dangerous.Controller
	engine        *notify.Engine
	hub           *notify.Hub
	inbox         *notify.InAppStore
	auditLog      extensions.AuditLogger
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new guardian Service with the given configuration.
//
// # Description
//
// New initializes all guardian components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (unless disabled)
//  3. Initializes Prometheus metrics
//  4. Compiles the embedded command risk classifier
//  5. Creates the audit logger and notification engine with adapters
//  6. Creates the session controller and starts its background sweeps
//  7. Sets up HTTP routes with extension options
//
// If opts is nil, DefaultOptions() is used, except that the nop command
// classifier is replaced with the embedded pattern classifier. An
// injected Classifier is honored as-is.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - opts: Extension options for enterprise features. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run guardian service
//   - error: Non-nil if initialization fails
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Apply extension options (use defaults if nil)
	if opts != nil {
		s.opts = *opts
	} else {
		defaults := extensions.DefaultOptions()
		s.opts = defaults
	}

	// The open source build ships with the embedded pattern classifier,
	// not the nop one. Enterprise injects its own.
	if _, isNop := s.opts.Classifier.(*extensions.NopCommandClassifier); isNop || s.opts.Classifier == nil {
		classifier, err := classify.NewRuleClassifier()
		if err != nil {
			return nil, fmt.Errorf("failed to compile command risk rules: %w", err)
		}
		s.opts.Classifier = classifier
	}

	// Initialize OpenTelemetry tracer
	if !s.config.DisableTracing {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	// Initialize Prometheus metrics
	if s.config.EnableMetrics && observability.DefaultMetrics == nil {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the guardian")
	}

	// Audit trail: enterprise logger if injected, otherwise the bounded
	// in-memory ring with slog mirroring.
	if _, isNop := s.opts.AuditLogger.(*extensions.NopAuditLogger); isNop || s.opts.AuditLogger == nil {
		s.opts.AuditLogger = audit.NewSlogAuditLogger(slog.Default())
	}
	s.auditLog = s.opts.AuditLogger

	// Notification engine with channel adapters
	s.initNotifications()

	// Session controller
	sessionCfg := dangerous.DefaultConfig()
	if s.config.Session != nil {
		sessionCfg = *s.config.Session
	}
	s.controller = dangerous.NewController(sessionCfg, dangerous.Deps{
		Classifier: s.opts.Classifier,
		Sink:       s.engine,
		Audit:      s.auditLog,
		Logger:     slog.Default(),
	})

	// Background sweeps: session expiry/warnings and notification TTL.
	ctx := context.Background()
	s.controller.Start(ctx)
	s.engine.Start(ctx)

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.Shutdown(context.Background())

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting guardian server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Shutdown stops background work and flushes the tracer.
func (s *service) Shutdown(ctx context.Context) {
	s.controller.Stop()
	s.engine.Stop()

	if err := s.auditLog.Flush(ctx); err != nil {
		slog.Warn("audit flush error", "error", err)
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(ctx)
	}
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12230
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	if cfg.WebhookRatePerSecond <= 0 {
		cfg.WebhookRatePerSecond = 1
	}
	// Metrics are always on; the singleton guard in New() makes repeated
	// construction safe for tests.
	cfg.EnableMetrics = true
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up OTLP trace exporter to send spans to the configured collector.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
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
		resource.WithAttributes(semconv.ServiceNameKey.String("guardian-service")))
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

// initNotifications wires the notification engine and its channel
// adapters.
//
// Realtime (websocket) and in-app adapters are always registered. The
// webhook adapter requires a configured URL; email, SMS, and chat fall
// back to log adapters until a real provider is injected.
func (s *service) initNotifications() {
	s.engine = notify.NewEngine(notify.EngineConfig{
		Logger: slog.Default(),
		Audit:  s.auditLog,
	}, notify.NewRegistry())

	s.hub = notify.NewHub(slog.Default())
	s.engine.RegisterAdapter(s.hub)

	s.inbox = notify.NewInAppStore(notify.DefaultInboxCapacity)
	s.engine.RegisterAdapter(s.inbox)

	if s.config.WebhookURL != "" {
		s.engine.RegisterAdapter(notify.NewWebhookAdapter(
			&http.Client{Timeout: 10 * time.Second},
			s.config.WebhookRatePerSecond, 5))

		// Seed a recipient so the configured endpoint receives every
		// notification type. Operators manage additional recipients
		// through the admin API.
		if _, err := s.engine.Registry().Add(datatypes.Recipient{
			ID:       "default-webhook",
			Channels: []datatypes.DeliveryChannel{datatypes.ChannelWebhook},
			Contacts: map[datatypes.DeliveryChannel]string{
				datatypes.ChannelWebhook: s.config.WebhookURL,
			},
			Active: true,
		}); err != nil {
			slog.Warn("failed to seed webhook recipient", "error", err)
		}
		slog.Info("Webhook notification channel enabled", "url", s.config.WebhookURL)
	}

	for _, channel := range []datatypes.DeliveryChannel{
		datatypes.ChannelEmail,
		datatypes.ChannelSMS,
		datatypes.ChannelChat,
	} {
		s.engine.RegisterAdapter(notify.NewLogAdapter(channel, slog.Default()))
	}
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()

	routes.SetupRoutes(s.router, s.controller, s.engine, s.hub, &s.opts)
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
