package ratelimit

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"

	defaultIP   = "127.0.0.1"
	keyPrefix   = "ip_"
	maxKeyChars = 32
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// ClientIP picks the caller address from the first X-Forwarded-For entry,
// then X-Real-IP, then the loopback default.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return defaultIP
}

// Key turns an IP into a document id: unsafe characters become underscores,
// the result is capped at 32 characters and prefixed with "ip_".
func Key(ip string) string {
	sanitized := unsafeKeyChars.ReplaceAllString(ip, "_")
	if len(sanitized) > maxKeyChars {
		sanitized = sanitized[:maxKeyChars]
	}
	return keyPrefix + sanitized
}

// Middleware gates every request whose path does not start with one of the
// exempt prefixes. Store failures let the request through.
func (l *Limiter) Middleware(exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, exempt) {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r)
			decision, err := l.Hit(r.Context(), ip)
			if err != nil {
				l.logger.Warn("rate limiting failed, allowing request", zap.String("key", Key(ip)), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			setHeaders(w.Header(), decision)
			if !decision.Allowed {
				w.Header().Set(HeaderRemaining, "0")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setHeaders(h http.Header, decision Decision) {
	h.Set(HeaderLimit, strconv.Itoa(decision.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(decision.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(decision.Reset, 10))
}

func isExempt(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
