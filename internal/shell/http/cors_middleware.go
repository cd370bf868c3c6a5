package http

import (
	"log"
	"net/http"
	"regexp"
)

// CORSMiddleware allows cross-origin requests from the catalog web
// front ends. Origins are matched against the configured regex
// whitelist; requests from unlisted origins pass through without CORS
// headers and the browser enforces the block.
type CORSMiddleware struct {
	patterns []*regexp.Regexp
}

func NewCORSMiddleware(whitelist []string) *CORSMiddleware {
	var patterns []*regexp.Regexp
	for _, raw := range whitelist {
		pattern, err := regexp.Compile(raw)
		if err != nil {
			// Config validation rejects bad patterns at startup.
			log.Printf("[DEBUG] Skipping uncompilable CORS pattern %q: %v", raw, err)
			continue
		}
		patterns = append(patterns, pattern)
	}
	return &CORSMiddleware{patterns: patterns}
}

func (m *CORSMiddleware) allowed(origin string) bool {
	for _, pattern := range m.patterns {
		if pattern.MatchString(origin) {
			return true
		}
	}
	return false
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && m.allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Username")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
