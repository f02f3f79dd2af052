package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"isp-agent-service/internal/auth"
	"isp-agent-service/internal/logging"
)

type ctxKey string

const ctxAdminClaims ctxKey = "admin_claims"

var reqIDSeq uint64

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// WithRequestLogging logs each request at debug level. Query strings are
// left out because app endpoints carry provider tokens there.
func WithRequestLogging(logger logging.Logger) func(http.Handler) http.Handler {
	log := logging.OrDiscard(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !log.IsLevelEnabled(logrus.DebugLevel) {
				next.ServeHTTP(w, r)
				return
			}

			reqID := atomic.AddUint64(&reqIDSeq, 1)
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			log.WithFields(logging.Fields{
				"id":          reqID,
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       sw.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("http request")
		})
	}
}

// WithAdminAuth requires a bearer token signed for the admin panel.
func WithAdminAuth(jwtSvc *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := strings.TrimSpace(r.Header.Get("Authorization"))
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, http.StatusUnauthorized, "missing_bearer_token")
				return
			}
			claims, err := jwtSvc.Verify(strings.TrimSpace(token))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), ctxAdminClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminClaims(r *http.Request) *auth.AdminClaims {
	c, _ := r.Context().Value(ctxAdminClaims).(*auth.AdminClaims)
	return c
}

// NewRateLimitStore uses redis when redisURL is set and reachable, memory
// otherwise.
func NewRateLimitStore(ctx context.Context, redisURL string, logger logging.Logger) limiter.Store {
	log := logging.OrDiscard(logger)
	if strings.TrimSpace(redisURL) == "" {
		return memory.NewStore()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithError(err).Warn("invalid REDIS_URL for rate limiting, falling back to memory")
		return memory.NewStore()
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable for rate limiting, falling back to memory")
		_ = client.Close()
		return memory.NewStore()
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "isp_agent_limiter"})
	if err != nil {
		log.WithError(err).Warn("failed to create redis rate limit store, falling back to memory")
		_ = client.Close()
		return memory.NewStore()
	}
	return store
}

// WithRateLimit limits requests per client IP. rate uses the limiter
// format, e.g. "60-M".
func WithRateLimit(store limiter.Store, rate string) (func(http.Handler) http.Handler, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	mw := stdlib.NewMiddleware(limiter.New(store, r),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
		}),
	)
	return mw.Handler, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
