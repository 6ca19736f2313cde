// Command server wires every component of the financial-research workflow
// engine together and starts the Control API: store, emitter, and
// engine are constructed in one place before running, here spanning the multi-agent
// subgraph topology and HTTP serving instead of a single in-process run.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/finresearch/agentflow/agents/debate"
	"github.com/finresearch/agentflow/agents/fundamental"
	"github.com/finresearch/agentflow/agents/intent"
	"github.com/finresearch/agentflow/agents/news"
	"github.com/finresearch/agentflow/agents/technical"
	"github.com/finresearch/agentflow/api"
	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/boundarylog"
	"github.com/finresearch/agentflow/config"
	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/llm"
	"github.com/finresearch/agentflow/llm/anthropic"
	"github.com/finresearch/agentflow/llm/google"
	"github.com/finresearch/agentflow/llm/openai"
	"github.com/finresearch/agentflow/storage"
	"github.com/finresearch/agentflow/stream"
	"github.com/finresearch/agentflow/workflow"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	checkpointBlobs, err := openBlobStore(cfg.CheckpointBackend, cfg)
	if err != nil {
		return fmt.Errorf("open checkpoint backend: %w", err)
	}
	artifactBlobs, err := openBlobStore(cfg.ArtifactBackend, cfg)
	if err != nil {
		return fmt.Errorf("open artifact backend: %w", err)
	}

	registry := contract.NewDefaultRegistry()
	artifactStore := artifact.NewStore(artifactBlobs, registry)
	checkpoints := workflow.NewCheckpointStore(checkpointBlobs)

	metrics := stream.NewMetrics(prometheus.NewRegistry())
	bus := stream.NewBus(cfg.EventBufferHighWater, metrics)

	boundaryLogger := boundarylog.NewLogger(os.Stdout, nil)

	ledger := llm.NewCostLedger()
	fundamentalModel := selectModel(cfg, "fundamental")
	newsModel := selectModel(cfg, "news")
	technicalModel := selectModel(cfg, "technical")

	graph := workflow.NewGraph()

	fundamentalPort := artifact.NewFundamentalPort(artifactStore)
	newsPort := artifact.NewNewsPort(artifactStore)
	technicalPort := artifact.NewTechnicalPort(artifactStore)
	debatePort := artifact.NewDebatePort(artifactStore, registry)
	debateOutputPort := artifact.NewDebateOutputPort(artifactStore)

	defaultPolicy := workflow.NodePolicy{Timeout: cfg.NodeDefaultTimeout, RetryPolicy: workflow.DefaultRetryPolicy}

	if err := graph.Add(intent.NewResolveNode(), defaultPolicy); err != nil {
		return fmt.Errorf("add intent.resolve: %w", err)
	}
	if err := graph.Add(intent.NewDispatchNode(fundamental.NodeID, news.NodeID, technical.NodeID), defaultPolicy); err != nil {
		return fmt.Errorf("add intent.dispatch: %w", err)
	}
	if err := graph.Add(fundamental.NewNode(&fundamental.Orchestrator{Model: fundamentalModel, ModelName: cfg.AnthropicModel, Ledger: ledger}, fundamentalPort, debate.NodeID), defaultPolicy); err != nil {
		return fmt.Errorf("add fundamental.report: %w", err)
	}
	if err := graph.Add(news.NewNode(&news.Orchestrator{Model: newsModel, ModelName: cfg.OpenAIModel, Ledger: ledger}, newsPort, debate.NodeID), defaultPolicy); err != nil {
		return fmt.Errorf("add news.scan: %w", err)
	}
	if err := graph.Add(technical.NewNode(&technical.Orchestrator{Model: technicalModel, ModelName: cfg.GoogleModel, Ledger: ledger}, technicalPort, debate.NodeID), defaultPolicy); err != nil {
		return fmt.Errorf("add technical.analyze: %w", err)
	}
	if err := graph.Add(debate.NewNode(debatePort, debateOutputPort), defaultPolicy); err != nil {
		return fmt.Errorf("add debate.synthesize: %w", err)
	}

	graph.StartAt(intent.ResolveNodeID)
	graph.Connect(intent.ResolveNodeID, intent.DispatchNodeID, workflow.Always)

	scheduler, err := workflow.NewScheduler(graph, checkpoints, bus, workflow.Options{
		DefaultNodeTimeout: cfg.NodeDefaultTimeout,
		Logger:             boundaryLogger,
	})
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	server := api.NewServer(scheduler, artifactStore, bus, registry, config.NewRedactor(cfg.LogRedactKeys), logger)

	httpServer := &http.Server{
		Addr:               cfg.ListenAddr,
		Handler:            server,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openBlobStore(backend config.Backend, cfg config.Config) (storage.BlobStore, error) {
	switch backend {
	case config.BackendSQLite:
		return storage.NewSQLiteBlobStore(cfg.SQLiteDSN)
	case config.BackendMySQL:
		return storage.NewMySQLBlobStore(cfg.MySQLDSN)
	default:
		return storage.NewMemoryBlobStore(), nil
	}
}

func selectModel(cfg config.Config, agentID string) llm.ChatModel {
	switch agentID {
	case "fundamental":
		if cfg.AnthropicAPIKey != "" {
			return anthropic.NewChatModel(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		}
	case "news":
		if cfg.OpenAIAPIKey != "" {
			return openai.NewChatModel(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		}
	case "technical":
		if cfg.GoogleAPIKey != "" {
			return google.NewChatModel(cfg.GoogleAPIKey, cfg.GoogleModel)
		}
	}
	return &llm.MockChatModel{}
}
