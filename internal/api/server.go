package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Keyring-Network/linkchat/internal/conversation"
	"github.com/Keyring-Network/linkchat/internal/events"
	"github.com/Keyring-Network/linkchat/internal/ratelimit"
)

type ChatService interface {
	History(ctx context.Context, id string) ([]conversation.Message, error)
	Reply(ctx context.Context, id string, message string) (conversation.Message, error)
}

type Broker interface {
	Subscribe(ctx context.Context, conversationID string) <-chan events.ConversationEvent
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Chat   ChatService
	Broker Broker
	// Limiter gates every route except ExemptPrefixes. Nil disables rate
	// limiting.
	Limiter        *ratelimit.Limiter
	ExemptPrefixes []string
	Store          Pinger
	Logger         *zap.Logger
	// Heartbeat is the keep-alive interval of event streams.
	Heartbeat time.Duration
}

type Server struct {
	chat           ChatService
	broker         Broker
	limiter        *ratelimit.Limiter
	exemptPrefixes []string
	store          Pinger
	logger         *zap.Logger
	heartbeat      time.Duration
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Server{
		chat:           opts.Chat,
		broker:         opts.Broker,
		limiter:        opts.Limiter,
		exemptPrefixes: opts.ExemptPrefixes,
		store:          opts.Store,
		logger:         logger,
		heartbeat:      heartbeat,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsHeaders)
	// Preflights are counted like any other request, so they carry the
	// rate-limit headers too.
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(s.exemptPrefixes...))
	}
	r.Use(answerPreflight)

	r.Get("/chat", s.getChat)
	r.Post("/chat", s.postChat)
	r.Get("/chat/{id}", s.getChat)
	r.Get("/chat/{id}/events", s.streamEvents)
	r.Post("/conversations", s.createConversation)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func (s *Server) quietRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && (cleanPath == "/health" || cleanPath == "/ready") {
		return true
	}
	if method == http.MethodGet && strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	return method == http.MethodOptions
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if s.store == nil {
		subsystems["store"] = subsystemStatus{Status: "skipped"}
	} else if err := s.store.Ping(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, map[string]string{"error": message}, statusCode)
}

func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		w.Header().Set("Access-Control-Expose-Headers", strings.Join([]string{
			ratelimit.HeaderLimit,
			ratelimit.HeaderRemaining,
			ratelimit.HeaderReset,
		}, ", "))
		next.ServeHTTP(w, r)
	})
}

func answerPreflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return server.ListenAndServe()
}
