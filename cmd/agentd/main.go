// agentd is the WhatsApp real-estate assistant's conversation core: webhook
// inlet, queue workers, idle sweeper, and admin API in one process.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/api"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/chunker"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/database"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/dispatcher"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/escalation"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/intent"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/leads"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm/embeddings"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/notify"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/queue"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/rag"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/ratelimit"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/redisstore"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/session"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/sweeper"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/vectorstore"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/version"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/whatsapp"
)

func whatsappSender(limiter *ratelimit.Limiter, cfg *config.Config) (*whatsapp.Sender, error) {
	return whatsapp.NewSender(limiter, cfg.WhatsApp)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupLogging() {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, nil)))
		return
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Could not load %s, continuing with existing environment: %v", envPath, err)
	}

	setupLogging()
	slog.Info("Starting agentd", "version", version.Version, "commit", version.GitCommit)

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.Server.GinMode)

	agentID := os.Getenv("AGENT_ID")
	if agentID == "" {
		slog.Error("AGENT_ID is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared key/value store.
	rdb, err := redisstore.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	// Relational store with migrations.
	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = dbClient.Close() }()
	slog.Info("Connected to PostgreSQL, schema up to date")

	conversations := database.NewConversationRepo(dbClient)
	analytics := database.NewAnalyticsRepo(dbClient)
	agents := database.NewAgentRepo(dbClient)

	// Model clients.
	llmClient, err := llm.NewAnthropicClient(cfg.LLM)
	if err != nil {
		slog.Error("Failed to build LLM client", "error", err)
		os.Exit(1)
	}
	embedder, err := embeddings.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		slog.Error("Failed to build embedding client", "error", err)
		os.Exit(1)
	}

	// Retrieval stack.
	vectors := vectorstore.NewPGVectorStore(dbClient.DB())
	retriever := rag.NewRetriever(embedder, vectors, vectors, cfg.Retrieval)
	ingestor := rag.NewIngestor(chunker.New(cfg.Chunker), embedder, vectors, vectors)

	// Outbound gateway, gated by the sliding-window limiter.
	limiter := ratelimit.NewLimiter(rdb, cfg.RateLimit)
	sender, err := whatsappSender(limiter, cfg)
	if err != nil {
		slog.Error("Failed to build WhatsApp sender", "error", err)
		os.Exit(1)
	}

	// Sessions, notifications, escalation, leads.
	sessions := session.NewStore(rdb, cfg.Session)
	notifier := notify.NewService(sender, notify.LoggedEmailer{}, notify.LoggedSMSer{}, analytics, cfg.Notify)
	handoff := escalation.NewHandoff(sessions, conversations, analytics, agents, notifier, sender, llmClient)
	detector := escalation.NewDetector(llmClient)
	classifier := intent.NewClassifier(llmClient)
	router := leads.NewRouter(analytics, notifier, agents)

	processor := dispatcher.NewProcessor(
		sessions, classifier, retriever, detector, handoff,
		conversations, router, agents, sender, llmClient)

	// Queue workers.
	q := queue.New(rdb, queue.QueueWhatsAppMessages, cfg.Queue)
	podID := getEnv("POD_NAME", "agentd")
	pool := queue.NewWorkerPool(podID, q, cfg.Queue, processor)
	pool.Start(ctx)
	defer pool.Stop()

	// Idle sweep.
	sweep := sweeper.NewService(cfg.Sweeper, sessions)
	sweep.Start(ctx)
	defer sweep.Stop()

	// HTTP surface.
	server := api.NewServer(cfg.Server, q, sessions, handoff, ingestor, agentID, map[string]api.HealthChecker{
		"database": func(ctx context.Context) (map[string]any, error) {
			return database.Health(ctx, dbClient)
		},
		"redis": func(ctx context.Context) (map[string]any, error) {
			if err := redisstore.Health(ctx, rdb); err != nil {
				return map[string]any{"status": "unreachable"}, err
			}
			return map[string]any{"status": "healthy"}, nil
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, draining")
	case err := <-errCh:
		slog.Error("HTTP server failed", "error", err)
	}
}
