package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/migadu/sievelint/consts"
	"github.com/migadu/sievelint/logger"
	"github.com/migadu/sievelint/pkg/metrics"
	"github.com/migadu/sievelint/server/idgen"
	"github.com/migadu/sievelint/server/sievecheck"
)

// maxRequestOverhead is what a JSON request may carry beyond the script
// itself.
const maxRequestOverhead = 4096

// Server represents the HTTP API server
type Server struct {
	addr          string
	apiKey        string
	allowedHosts  []string
	checker       *sievecheck.Checker
	maxScriptSize int64
	server        *http.Server
	tls           bool
	tlsCertFile   string
	tlsKeyFile    string
	started       time.Time
}

// ServerOptions holds configuration options for the HTTP API server
type ServerOptions struct {
	Addr         string
	APIKey       string // If empty, requests are not authenticated
	AllowedHosts []string
	// MaxScriptSize bounds request bodies. Zero means 1 MiB.
	MaxScriptSize int64
	TLS           bool
	TLSCertFile   string
	TLSKeyFile    string
}

// CheckRequest is the body of POST /api/v1/check.
type CheckRequest struct {
	Name   string `json:"name"`
	Script string `json:"script"`
}

// New creates a new HTTP API server
func New(checker *sievecheck.Checker, options ServerOptions) (*Server, error) {
	if checker == nil {
		return nil, fmt.Errorf("a checker is required for the HTTP API server")
	}
	if options.TLS && (options.TLSCertFile == "" || options.TLSKeyFile == "") {
		return nil, fmt.Errorf("TLS certificate and key files are required when TLS is enabled")
	}
	if options.MaxScriptSize <= 0 {
		options.MaxScriptSize = 1 << 20
	}

	return &Server{
		addr:          options.Addr,
		apiKey:        options.APIKey,
		allowedHosts:  options.AllowedHosts,
		checker:       checker,
		maxScriptSize: options.MaxScriptSize,
		tls:           options.TLS,
		tlsCertFile:   options.TLSCertFile,
		tlsKeyFile:    options.TLSKeyFile,
		started:       time.Now(),
	}, nil
}

// Start runs the HTTP API server until ctx is done. Errors other than a
// clean shutdown are sent to errChan.
func Start(ctx context.Context, checker *sievecheck.Checker, options ServerOptions, errChan chan<- error) {
	server, err := New(checker, options)
	if err != nil {
		errChan <- fmt.Errorf("failed to create HTTP API server: %w", err)
		return
	}

	protocol := "HTTP"
	if options.TLS {
		protocol = "HTTPS"
	}
	logger.Info("Starting API server", "protocol", protocol, "addr", options.Addr)
	if err := server.start(ctx); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		errChan <- fmt.Errorf("HTTP API server failed: %w", err)
	}
}

// start initializes and starts the HTTP server
func (s *Server) start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down HTTP API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error shutting down HTTP API server", "error", err)
		}
	}()

	if s.tls {
		return s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}
	return s.server.ListenAndServe()
}

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.Use(s.requestIDMiddleware)
	router.Use(s.loggingMiddleware)
	router.Use(s.allowedHostsMiddleware)
	router.Use(s.authMiddleware)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/check", s.handleCheck).Methods("POST").Name("check")
	v1.HandleFunc("/check/raw", s.handleCheckRaw).Methods("POST").Name("check_raw")
	v1.HandleFunc("/extensions", s.handleExtensions).Methods("GET").Name("extensions")
	v1.HandleFunc("/health", s.handleHealth).Methods("GET").Name("health")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return router
}

// Middleware functions

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !idgen.Valid(id) {
			id = idgen.New()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), consts.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if m := mux.CurrentRoute(r); m != nil && m.GetName() != "" {
			route = m.GetName()
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		logger.InfoContext(r.Context(), "HTTP API request",
			"method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr,
			"status", rec.status, "duration", elapsed,
			"request_id", r.Context().Value(consts.RequestIDKey))
	})
}

func (s *Server) allowedHostsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedHosts) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		if !hostAllowed(s.allowedHosts, getClientIP(r)) {
			s.writeError(w, http.StatusForbidden, "Host not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// hostAllowed matches clientIP against plain addresses and CIDR blocks.
func hostAllowed(allowedHosts []string, clientIP string) bool {
	ip := net.ParseIP(clientIP)
	for _, allowed := range allowedHosts {
		if allowed == clientIP {
			return true
		}
		if ip == nil || !strings.Contains(allowed, "/") {
			continue
		}
		if _, cidr, err := net.ParseCIDR(allowed); err == nil && cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/api/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			s.writeError(w, http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			s.writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handlers

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	body := http.MaxBytesReader(w, r.Body, s.maxScriptSize*2+maxRequestOverhead)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	s.check(w, r, req.Name, req.Script)
}

func (s *Server) handleCheckRaw(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxScriptSize+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	s.check(w, r, r.URL.Query().Get("name"), string(data))
}

func (s *Server) check(w http.ResponseWriter, r *http.Request, name, script string) {
	ctx := r.Context()
	report, err := s.checker.Check(ctx, name, script)
	switch {
	case errors.Is(err, consts.ErrEmptyScript):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, consts.ErrScriptTooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case err != nil:
		logger.ErrorContext(ctx, "HTTP API: check failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, consts.ErrInternalError.Error())
	default:
		s.writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleExtensions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"extensions": s.checker.Extensions()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// Utility functions

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("HTTP API: Error encoding JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
