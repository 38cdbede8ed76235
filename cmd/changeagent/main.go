/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main serves change requests over HTTP: each POST /code clones a
// GitHub repository, asks a model for edits, pushes a branch and opens a pull
// request, streaming progress back as server-sent events.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"chainguard.dev/changeagent/agents/agenttrace"
	"chainguard.dev/changeagent/agents/executor"
	"chainguard.dev/changeagent/agents/executor/claudeexecutor"
	"chainguard.dev/changeagent/agents/executor/googleexecutor"
	"chainguard.dev/changeagent/agents/executor/openaiexecutor"
	"chainguard.dev/changeagent/agents/executor/retry"
	"chainguard.dev/changeagent/agents/metrics"
	"chainguard.dev/changeagent/pipeline/orchestrator"
	"chainguard.dev/changeagent/pipeline/patchoracle"
	"chainguard.dev/changeagent/pipeline/selection"
	"chainguard.dev/changeagent/repository/changemanager"
	"chainguard.dev/changeagent/repository/clonemanager"
)

type config struct {
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// Credentials are checked per request so the server starts without them.
	GitHubToken     string `env:"GITHUB_TOKEN"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`

	// Model configuration
	Provider       string `env:"MODEL_PROVIDER,default=anthropic"`
	ClaudeModel    string `env:"CLAUDE_MODEL,default=claude-sonnet-4-5"`
	OpenAIModel    string `env:"OPENAI_MODEL,default=gpt-4o"`
	GeminiModel    string `env:"GEMINI_MODEL,default=gemini-2.5-pro"`
	ModelMaxTokens int64  `env:"MODEL_MAX_TOKENS,default=8192"`

	// Git configuration
	AuthorName       string        `env:"GIT_AUTHOR_NAME,default=Coding Agent"`
	AuthorEmail      string        `env:"GIT_AUTHOR_EMAIL,default=changeagent@users.noreply.github.com"`
	BranchPrefix     string        `env:"BRANCH_PREFIX,default=changeagent"`
	PushRetryBackoff time.Duration `env:"PUSH_RETRY_BACKOFF,default=2s"`

	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT,default=2m"`
	ModelTimeout   time.Duration `env:"MODEL_TIMEOUT,default=3m"`
	PushTimeout    time.Duration `env:"PUSH_TIMEOUT,default=1m"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT,default=30s"`

	StreamBuffer  int  `env:"STREAM_BUFFER,default=16"`
	EnableTracing bool `env:"ENABLE_TRACING,default=false"`
}

// validate rejects settings envconfig accepts but the executors cannot use.
func (c *config) validate() error {
	if c.ModelMaxTokens <= 0 || c.ModelMaxTokens > math.MaxInt32 {
		return fmt.Errorf("MODEL_MAX_TOKENS must be between 1 and %d, got %d", math.MaxInt32, c.ModelMaxTokens)
	}
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}
	if err := cfg.validate(); err != nil {
		clog.FatalContextf(ctx, "invalid config: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		clog.FatalContextf(ctx, "parsing LOG_LEVEL: %v", err)
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	ctx = clog.WithLogger(ctx, clog.New(handler))

	// Meters are created against the global provider, so install it first.
	exporter, err := otelprom.New()
	if err != nil {
		clog.FatalContextf(ctx, "creating prometheus exporter: %v", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			clog.WarnContextf(ctx, "shutting down meter provider: %v", err)
		}
	}()
	otel.SetMeterProvider(provider)

	orch, err := newOrchestrator(ctx, &cfg)
	if err != nil {
		clog.FatalContextf(ctx, "creating orchestrator: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	newServer(orch, cfg.StreamBuffer).register(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		clog.InfoContextf(ctx, "Starting changeagent on port %d (provider=%s)", cfg.Port, cfg.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := eg.Wait(); err != nil {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
}

// enrich labels metrics with the repository and provider of the run.
func enrich(ctx context.Context, base []attribute.KeyValue) []attribute.KeyValue {
	return agenttrace.GetExecutionContext(ctx).EnrichAttributes(base)
}

func newOrchestrator(ctx context.Context, cfg *config) (*orchestrator.Orchestrator, error) {
	genaiMetrics := metrics.NewGenAI(metrics.MeterName)
	genaiMetrics.SetAttributeEnricher(enrich)
	pipelineMetrics := metrics.NewPipeline(metrics.MeterName)
	pipelineMetrics.SetAttributeEnricher(enrich)

	completer, credential, err := newCompleter(ctx, cfg, genaiMetrics)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
	git, err := clonemanager.New(ts,
		clonemanager.WithIdentity(cfg.AuthorName, cfg.AuthorEmail),
		clonemanager.WithRetryConfig(retry.SingleRetry(cfg.PushRetryBackoff)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating clone manager: %w", err)
	}
	publisher, err := changemanager.NewFromTokenSource(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("creating change manager: %w", err)
	}

	tracer := agenttrace.Noop()
	if cfg.EnableTracing {
		tracer = agenttrace.NewDefaultTracer(ctx)
	}

	return orchestrator.New(git, publisher, selection.New(completer), patchoracle.New(completer),
		orchestrator.WithCredentials(orchestrator.Credentials{
			{Name: "GITHUB_TOKEN", Value: cfg.GitHubToken},
			credential,
		}),
		orchestrator.WithProvider(cfg.Provider),
		orchestrator.WithTracer(tracer),
		orchestrator.WithMetrics(pipelineMetrics),
		orchestrator.WithBranchPrefix(cfg.BranchPrefix),
		orchestrator.WithTimeouts(orchestrator.Timeouts{
			Fetch:   cfg.FetchTimeout,
			Model:   cfg.ModelTimeout,
			Push:    cfg.PushTimeout,
			Publish: cfg.PublishTimeout,
		}),
	), nil
}

// newCompleter builds the model executor for the configured provider and
// returns the credential it depends on.
func newCompleter(ctx context.Context, cfg *config, m *metrics.GenAI) (executor.Completer, orchestrator.Credential, error) {
	switch cfg.Provider {
	case "anthropic":
		client := anthropic.NewClient(
			anthropicoption.WithAPIKey(cfg.AnthropicAPIKey),
			anthropicoption.WithMaxRetries(0),
		)
		e, err := claudeexecutor.New(client,
			claudeexecutor.WithModel(cfg.ClaudeModel),
			claudeexecutor.WithMaxTokens(cfg.ModelMaxTokens),
			claudeexecutor.WithMetrics(m),
		)
		return e, orchestrator.Credential{Name: "ANTHROPIC_API_KEY", Value: cfg.AnthropicAPIKey}, err

	case "openai":
		client := openai.NewClient(
			openaioption.WithAPIKey(cfg.OpenAIAPIKey),
			openaioption.WithMaxRetries(0),
		)
		e, err := openaiexecutor.New(client,
			openaiexecutor.WithModel(cfg.OpenAIModel),
			openaiexecutor.WithMaxTokens(cfg.ModelMaxTokens),
			openaiexecutor.WithMetrics(m),
		)
		return e, orchestrator.Credential{Name: "OPENAI_API_KEY", Value: cfg.OpenAIAPIKey}, err

	case "gemini":
		cred := orchestrator.Credential{Name: "GEMINI_API_KEY", Value: cfg.GeminiAPIKey}
		if cfg.GeminiAPIKey == "" {
			// The client refuses to start without a key; report it per request instead.
			return unconfigured{}, cred, nil
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, cred, fmt.Errorf("creating gemini client: %w", err)
		}
		e, err := googleexecutor.New(client,
			googleexecutor.WithModel(cfg.GeminiModel),
			googleexecutor.WithMaxOutputTokens(int32(cfg.ModelMaxTokens)),
			googleexecutor.WithMetrics(m),
		)
		return e, cred, err

	default:
		return nil, orchestrator.Credential{}, fmt.Errorf("unknown MODEL_PROVIDER %q (want anthropic, openai or gemini)", cfg.Provider)
	}
}

// unconfigured stands in for a provider whose credential is missing. Runs
// fail credential validation before it could be called.
type unconfigured struct{}

func (unconfigured) Complete(context.Context, executor.Request) (*executor.Completion, error) {
	return nil, errors.New("model provider is not configured")
}
