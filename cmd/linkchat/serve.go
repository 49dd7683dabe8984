package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Keyring-Network/linkchat/internal/api"
	"github.com/Keyring-Network/linkchat/internal/chat"
	"github.com/Keyring-Network/linkchat/internal/config"
	"github.com/Keyring-Network/linkchat/internal/conversation"
	"github.com/Keyring-Network/linkchat/internal/events"
	"github.com/Keyring-Network/linkchat/internal/llm"
	"github.com/Keyring-Network/linkchat/internal/logging"
	"github.com/Keyring-Network/linkchat/internal/ratelimit"
	"github.com/Keyring-Network/linkchat/internal/scrape"
	"github.com/Keyring-Network/linkchat/internal/store"
	"github.com/Keyring-Network/linkchat/internal/store/memory"
	"github.com/Keyring-Network/linkchat/internal/store/postgres"
	"github.com/Keyring-Network/linkchat/internal/store/sqlite"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig  = config.Load
	newLogger   = logging.New
	openStore   = openDocumentStore
	newProvider = llm.NewProvider
	newRenderer = func(cfg config.Config) scrape.Renderer {
		return scrape.NewChromeRenderer(scrape.ChromeOptions{
			ExecPath:  cfg.ChromePath,
			NoSandbox: cfg.ChromeNoSandbox,
		})
	}
	newServer = func(opts api.Options) server {
		return api.NewServer(opts)
	}
	notifyContext = signal.NotifyContext
)

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := notifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	docs, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	provider, err := newProvider(llm.Config{
		Provider:         cfg.LLMProvider,
		Model:            cfg.LLMModel,
		BaseURL:          cfg.LLMBaseURL,
		Timeout:          cfg.LLMTimeout,
		GroqAPIKey:       cfg.GroqAPIKey,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
	})
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	service := chat.NewService(chat.ServiceOptions{
		History:   conversation.NewStore(docs, cfg.ConversationCollection, cfg.StoreTimeout),
		Fetcher:   buildFetcher(cfg, logger),
		Completer: chat.NewCompleter(provider, llm.Options{Temperature: cfg.LLMTemperature, MaxTokens: cfg.LLMMaxTokens}),
		Publisher: broker,
		Logger:    logger,
	})

	limiter := ratelimit.New(docs, ratelimit.Options{
		Collection: cfg.RateLimitCollection,
		Window:     cfg.RateLimitWindow,
		Limit:      cfg.RateLimitMaxRequests,
		Timeout:    cfg.StoreTimeout,
		Logger:     logger,
	})
	go limiter.RunJanitor(ctx, cfg.RateLimitSweepInterval, cfg.RateLimitRetention)

	opts := api.Options{
		Chat:           service,
		Broker:         broker,
		Limiter:        limiter,
		ExemptPrefixes: cfg.RateLimitExemptPrefix,
		Logger:         logger,
	}
	if pinger, ok := docs.(api.Pinger); ok {
		opts.Store = pinger
	}
	srv := newServer(opts)

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("linkchat listening",
		zap.String("addr", addr),
		zap.String("store", cfg.StoreDriver),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("llm_model", cfg.LLMModel),
		zap.Bool("render_enabled", cfg.ScrapeRenderEnabled),
	)
	if err := srv.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("linkchat stopped")
	return nil
}

func buildFetcher(cfg config.Config, logger *zap.Logger) *scrape.Fetcher {
	opts := scrape.Options{
		MinStaticChars:  cfg.ScrapeMinStaticChars,
		MaxContentChars: cfg.ScrapeMaxContentChars,
		FetchTimeout:    cfg.ScrapeFetchTimeout,
		RenderTimeout:   cfg.ScrapeRenderTimeout,
		Concurrency:     cfg.ScrapeConcurrency,
		UserAgent:       cfg.ScrapeUserAgent,
		Logger:          logger,
	}
	if cfg.ScrapeRenderEnabled {
		opts.Renderer = newRenderer(cfg)
	}
	return scrape.NewFetcher(opts)
}

// openDocumentStore returns the configured backend and its close function.
func openDocumentStore(cfg config.Config) (store.Store, func() error, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return memory.New(), func() error { return nil }, nil
	case "postgres":
		st, err := postgres.New(cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "sqlite":
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
