package handlers

import (
	"net/http"
	"slices"
	"strings"

	"isp-agent-service/internal/config"
)

// WithCORS allows the configured origins; "*" allows any origin.
func WithCORS(cfg config.Config) func(http.Handler) http.Handler {
	allowed := make([]string, 0)
	for _, part := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		allowed = append(allowed, s)
	}

	allowsAll := slices.Contains(allowed, "*")
	isAllowed := func(origin string) bool {
		return allowsAll || slices.Contains(allowed, origin)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && isAllowed(origin) {
				w.Header().Set("Vary", "Origin")
				if allowsAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
