package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Keyring-Network/linkchat/internal/api"
	"github.com/Keyring-Network/linkchat/internal/config"
	"github.com/Keyring-Network/linkchat/internal/llm"
	"github.com/Keyring-Network/linkchat/internal/scrape"
	"github.com/Keyring-Network/linkchat/internal/store"
	"github.com/Keyring-Network/linkchat/internal/store/memory"
	"github.com/Keyring-Network/linkchat/internal/store/sqlite"
)

type stubServer struct {
	err  error
	addr *string
}

func (s stubServer) Start(ctx context.Context, addr string) error {
	if s.addr != nil {
		*s.addr = addr
	}
	return s.err
}

type stubProvider struct{}

func (stubProvider) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return "stub", nil
}

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	return "rendered " + pageURL, nil
}

func captureDeps() func() {
	origLoadConfig := loadConfig
	origNewLogger := newLogger
	origOpenStore := openStore
	origNewProvider := newProvider
	origNewRenderer := newRenderer
	origNewServer := newServer
	origNotifyContext := notifyContext

	return func() {
		loadConfig = origLoadConfig
		newLogger = origNewLogger
		openStore = origOpenStore
		newProvider = origNewProvider
		newRenderer = origNewRenderer
		newServer = origNewServer
		notifyContext = origNotifyContext
	}
}

func stubDeps(cfg config.Config) {
	loadConfig = func() (config.Config, error) { return cfg, nil }
	newLogger = func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil }
	newProvider = func(llm.Config) (llm.Provider, error) { return stubProvider{}, nil }
	newRenderer = func(config.Config) scrape.Renderer { return stubRenderer{} }
	newServer = func(api.Options) server { return stubServer{} }
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}
}

func baseConfig() config.Config {
	return config.Config{
		Port:                 "0",
		StoreDriver:          "memory",
		LLMProvider:          "groq",
		LLMModel:             "mixtral-8x7b-32768",
		LLMTemperature:       0.7,
		LLMMaxTokens:         4096,
		RateLimitMaxRequests: 10,
		LogLevel:             "info",
		LogFormat:            "json",
	}
}

func TestRunServeSuccess(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)
	stubDeps(baseConfig())

	var addr string
	var captured api.Options
	newServer = func(opts api.Options) server {
		captured = opts
		return stubServer{addr: &addr}
	}
	var providerCfg llm.Config
	newProvider = func(cfg llm.Config) (llm.Provider, error) {
		providerCfg = cfg
		return stubProvider{}, nil
	}

	if err := runServe(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if addr != ":0" {
		t.Fatalf("expected addr :0, got %q", addr)
	}
	if captured.Chat == nil || captured.Broker == nil || captured.Limiter == nil {
		t.Fatalf("expected server dependencies to be wired: %+v", captured)
	}
	if captured.Store == nil {
		t.Fatal("expected memory store to be used for readiness")
	}
	if providerCfg.Provider != "groq" || providerCfg.Model != "mixtral-8x7b-32768" {
		t.Fatalf("unexpected provider config: %+v", providerCfg)
	}
}

func TestRunServeServerClosedIsClean(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)
	stubDeps(baseConfig())
	newServer = func(api.Options) server { return stubServer{err: http.ErrServerClosed} }

	if err := runServe(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRunServeServerFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)
	stubDeps(baseConfig())
	newServer = func(api.Options) server { return stubServer{err: errors.New("address in use")} }

	if err := runServe(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunServeConfigLoadFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)
	stubDeps(baseConfig())
	loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("config load failed")
	}

	if err := runServe(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunServeLoggerFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)
	stubDeps(baseConfig())
	newLogger = func(string, string) (*zap.Logger, error) {
		return nil, errors.New("bad level")
	}

	if err := runServe(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunServeStoreInitFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)
	stubDeps(baseConfig())
	openStore = func(config.Config) (store.Store, func() error, error) {
		return nil, nil, errors.New("store init failed")
	}

	err := runServe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "store init failed") {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestRunServeProviderFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)
	stubDeps(baseConfig())
	closed := false
	openStore = func(config.Config) (store.Store, func() error, error) {
		return memory.New(), func() error { closed = true; return nil }, nil
	}
	newProvider = func(llm.Config) (llm.Provider, error) {
		return nil, llm.ErrUnsupportedProvider{Provider: "mystery"}
	}

	if err := runServe(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if !closed {
		t.Fatal("expected store to be closed")
	}
}

func TestOpenDocumentStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		st, closeFn, err := openDocumentStore(config.Config{StoreDriver: "memory"})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if _, ok := st.(*memory.MemoryStore); !ok {
			t.Fatalf("expected memory store, got %T", st)
		}
		if err := closeFn(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data", "linkchat.db")
		st, closeFn, err := openDocumentStore(config.Config{StoreDriver: "sqlite", SQLitePath: path})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		defer func() { _ = closeFn() }()
		if _, ok := st.(*sqlite.SQLiteStore); !ok {
			t.Fatalf("expected sqlite store, got %T", st)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected database file: %v", err)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, _, err := openDocumentStore(config.Config{StoreDriver: "mongo"}); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestBuildFetcherRendererToggle(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	calls := 0
	newRenderer = func(config.Config) scrape.Renderer {
		calls++
		return stubRenderer{}
	}

	buildFetcher(config.Config{ScrapeRenderEnabled: false}, zap.NewNop())
	if calls != 0 {
		t.Fatalf("renderer built while disabled")
	}
	buildFetcher(config.Config{ScrapeRenderEnabled: true}, zap.NewNop())
	if calls != 1 {
		t.Fatalf("expected renderer to be built once, got %d", calls)
	}
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	if cmd.Use != "linkchat" {
		t.Fatalf("expected use 'linkchat', got %q", cmd.Use)
	}
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["serve"] || !names["fetch"] {
		t.Fatalf("expected serve and fetch subcommands, got %v", names)
	}
}

func TestFetchCommand(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)
	cfg := baseConfig()
	cfg.ScrapeRenderEnabled = true
	stubDeps(cfg)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, "<html><body><p>tiny page</p></body></html>")
	}))
	defer site.Close()

	t.Run("renders short pages", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"fetch", site.URL + "/page", site.URL + "/missing"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("fetch: %v", err)
		}

		var result scrape.Result
		if err := json.NewDecoder(&out).Decode(&result); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if result.URL != site.URL+"/page" || result.Content != "rendered "+site.URL+"/page" {
			t.Fatalf("unexpected result %+v", result)
		}
		if strings.Contains(out.String(), "/missing") {
			t.Fatalf("failed url should be skipped: %s", out.String())
		}
	})

	t.Run("no render", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"fetch", "--no-render", site.URL + "/page"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("fetch: %v", err)
		}
		var result scrape.Result
		if err := json.NewDecoder(&out).Decode(&result); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if result.Content != "tiny page" {
			t.Fatalf("unexpected content %q", result.Content)
		}
	})

	t.Run("requires url", func(t *testing.T) {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"fetch"})
		if err := cmd.Execute(); err == nil {
			t.Fatal("expected error without urls")
		}
	})
}
