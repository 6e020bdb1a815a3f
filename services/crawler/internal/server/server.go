package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"lexilegal/internal/servicetoken"
	"lexilegal/internal/usertoken"
	"lexilegal/internal/util"
	"lexilegal/services/crawler/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App             *app.App
	TokenVerifier   *usertoken.Verifier
	ServiceVerifier *servicetoken.Verifier
}

// Server exposes HTTP endpoints for the crawler service.
type Server struct {
	app             *app.App
	tokenVerifier   *usertoken.Verifier
	serviceVerifier *servicetoken.Verifier
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:             cfg.App,
		tokenVerifier:   cfg.TokenVerifier,
		serviceVerifier: cfg.ServiceVerifier,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("crawler", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/crawl", s.withOperator(s.handleCrawl))
	s.mux.Handle("/updates", s.withUser(s.handleUpdates))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenVerifier == nil {
			writeError(w, http.StatusInternalServerError, "token verifier not configured")
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.tokenVerifier.VerifySubject(token); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

// withOperator protects trigger endpoints. A scheduler presents an
// internal service token; a user bearer token is accepted as well.
func (s *Server) withOperator(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if s.serviceVerifier != nil {
			if _, err := s.serviceVerifier.Verify(token); err == nil {
				next(w, r)
				return
			}
		}
		if s.tokenVerifier == nil {
			writeError(w, http.StatusInternalServerError, "token verifier not configured")
			return
		}
		if _, err := s.tokenVerifier.VerifySubject(token); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

type crawlRequest struct {
	URL      string `json:"url"`
	Selector string `json:"selector"`
	Source   string `json:"source"`
}

// handleCrawl triggers a crawl pass: all configured sources, or one
// ad-hoc source when a URL is given.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req crawlRequest
	if r.Body != nil {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if strings.TrimSpace(req.URL) != "" {
		result, err := s.app.Crawl(r.Context(), app.Source{
			Name:     req.Source,
			URL:      req.URL,
			Selector: req.Selector,
		})
		if err != nil {
			writeCrawlError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
	results := s.app.CrawlAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"items": results,
		"count": len(results),
	})
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	updates, err := s.app.ListUpdates(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": updates,
		"count": len(updates),
	})
}

func writeCrawlError(w http.ResponseWriter, err error) {
	var fetchErr *app.FetchError
	switch {
	case errors.Is(err, app.ErrSelectorNotFound):
		writeError(w, http.StatusInternalServerError, "content selector not found")
	case errors.As(err, &fetchErr):
		writeError(w, http.StatusInternalServerError, fetchErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "crawl failed")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
