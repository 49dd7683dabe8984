package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Keyring-Network/linkchat/internal/store"
)

const (
	DefaultCollection = "ratelimits"
	DefaultWindow     = 10 * time.Second
	DefaultLimit      = 10
	defaultTimeout    = 2 * time.Second
)

// Window is the persisted counter for one client key. WindowStart is in
// epoch seconds.
type Window struct {
	IP             string `json:"ip"`
	WindowStart    int64  `json:"window_start"`
	WindowRequests int64  `json:"window_requests"`
	Requests       int64  `json:"requests"`
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     int64
}

type Options struct {
	Collection string
	Window     time.Duration
	Limit      int
	// Timeout bounds each store round trip made while limiting.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Limiter counts requests per client key in windows that start at the first
// request after the previous window expired. Updates are a non-atomic
// read-modify-write, so concurrent requests from one IP can under-count.
type Limiter struct {
	store      store.Store
	collection string
	window     int64
	limit      int
	timeout    time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func New(st store.Store, opts Options) *Limiter {
	l := &Limiter{
		store:      st,
		collection: opts.Collection,
		window:     int64(opts.Window / time.Second),
		limit:      opts.Limit,
		timeout:    opts.Timeout,
		now:        time.Now,
		logger:     opts.Logger,
	}
	if l.collection == "" {
		l.collection = DefaultCollection
	}
	if l.window < 1 {
		l.window = int64(DefaultWindow / time.Second)
	}
	if l.limit < 1 {
		l.limit = DefaultLimit
	}
	if l.timeout <= 0 {
		l.timeout = defaultTimeout
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

func (l *Limiter) Limit() int {
	return l.limit
}

// Hit records one request for ip and reports whether it fits in the current
// window. Errors come only from the backing store; callers decide the
// failure policy.
func (l *Limiter) Hit(ctx context.Context, ip string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := Key(ip)
	now := l.now().Unix()

	window, err := l.load(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		window = Window{IP: key, WindowStart: now, WindowRequests: 1, Requests: 1}
	case err != nil:
		return Decision{}, err
	case now-window.WindowStart >= l.window:
		window.WindowStart = now
		window.WindowRequests = 1
		window.Requests++
	default:
		window.WindowRequests++
		window.Requests++
	}

	data, err := json.Marshal(window)
	if err != nil {
		return Decision{}, err
	}
	if err := store.Put(ctx, l.store, store.Document{Collection: l.collection, ID: key, Data: data}); err != nil {
		return Decision{}, fmt.Errorf("save rate limit window %s: %w", key, err)
	}

	remaining := int64(l.limit) - window.WindowRequests
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   window.WindowRequests <= int64(l.limit),
		Limit:     l.limit,
		Remaining: int(remaining),
		Reset:     window.WindowStart + l.window,
	}, nil
}

func (l *Limiter) load(ctx context.Context, key string) (Window, error) {
	doc, err := l.store.GetDocument(ctx, l.collection, key)
	if err != nil {
		return Window{}, err
	}
	var window Window
	if err := json.Unmarshal(doc.Data, &window); err != nil {
		return Window{}, fmt.Errorf("decode rate limit window %s: %w", key, err)
	}
	return window, nil
}

// Prune deletes windows not written within retention. Backends without
// store.Pruner keep their records; stale windows there are still reset on
// the next hit.
func (l *Limiter) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	pruner, ok := l.store.(store.Pruner)
	if !ok {
		return 0, nil
	}
	return pruner.DeleteDocumentsBefore(ctx, l.collection, l.now().Add(-retention))
}

// RunJanitor prunes stale windows every interval until ctx is done.
func (l *Limiter) RunJanitor(ctx context.Context, interval time.Duration, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := l.Prune(ctx, retention)
			if err != nil {
				l.logger.Warn("rate limit prune failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				l.logger.Info("pruned stale rate limit windows", zap.Int64("deleted", deleted))
			}
		}
	}
}
