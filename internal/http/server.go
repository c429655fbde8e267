// Package http serves the dashboard UI and its JSON series endpoint. All
// uploaded data lives in per-browser sessions; the only thing that touches
// disk is the mapping preset store.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"kpiboard/internal/amqp"
	"kpiboard/internal/cache"
	"kpiboard/internal/core"
	"kpiboard/internal/dataset"
	"kpiboard/internal/report"
	"kpiboard/internal/session"
	"kpiboard/internal/storage"
	appweb "kpiboard/web"
)

const sessionCookie = "kpi_session"

// PresetStore persists named column mappings across sessions.
// *storage.PresetRepository satisfies it; nil disables the preset UI.
type PresetStore interface {
	SavePreset(ctx context.Context, p storage.Preset) error
	GetPreset(ctx context.Context, name string) (storage.Preset, error)
	ListPresets(ctx context.Context) ([]storage.Preset, error)
}

// IngestPublisher emits a notification after a mapping is applied to a
// freshly loaded dataset. *amqp.Client satisfies it; nil disables publishing.
type IngestPublisher interface {
	PublishDatasetIngested(ctx context.Context, msg *amqp.DatasetIngestedMessage) error
}

// Options carries the server's collaborators. Sessions is required;
// everything else may be nil (the matching feature is then disabled).
type Options struct {
	Sessions       *session.Store
	Presets        PresetStore
	Publisher      IngestPublisher
	Source         dataset.Source
	SourceName     string
	MaxUploadBytes int64
}

type Server struct {
	http.Server
	templates *template.Template

	sessions   *session.Store
	presets    PresetStore
	publisher  IngestPublisher
	source     dataset.Source
	sourceName string

	maxUploadBytes int64
	rateLimiter    *rateLimiter
	metrics        securityMetrics

	// Built reports keyed by session, dataset version, mapping, and filter.
	reportCache *cache.LRUCache[*report.Report]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	mux := http.NewServeMux()

	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		sessions:         opts.Sessions,
		presets:          opts.Presets,
		publisher:        opts.Publisher,
		source:           opts.Source,
		sourceName:       opts.SourceName,
		maxUploadBytes:   maxUpload,
		rateLimiter:      newRateLimiter(60),
		reportCache:      cache.NewLRU[*report.Report](200, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	// Start periodic cache cleanup
	go s.startCacheCleanup()

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Tiny cache for static assets
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/upload", s.withSecurityHeaders(s.handleUpload))
	mux.HandleFunc("/load-source", s.withSecurityHeaders(s.handleLoadSource))
	mux.HandleFunc("/mapping", s.withSecurityHeaders(s.handleMapping))
	mux.HandleFunc("/presets", s.withSecurityHeaders(s.handlePresets))
	mux.HandleFunc("/presets/apply", s.withSecurityHeaders(s.handleApplyPreset))
	// UI partials
	mux.HandleFunc("/ui/mapping", s.withSecurityHeaders(s.handleMappingForm))
	mux.HandleFunc("/ui/dashboard", s.withSecurityHeaders(s.handleDashboard))
	// Chart data
	mux.HandleFunc("/api/series", s.withSecurityHeaders(s.handleSeries))

	return s
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)

		// Generate request ID for tracing
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limit mutating requests (uploads, mapping changes)
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, &s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Capture status code for the completion log line
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// session returns the live session for the request's cookie, creating a new
// one (and setting the cookie) when absent or expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *session.State) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if st, ok := s.sessions.Get(c.Value); ok {
			return c.Value, st
		}
	}
	id, st := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, st
}

// reportKey builds a cache key covering everything a report depends on.
func reportKey(sessionID string, version int64, mapping core.Mapping, dateLayout string, filter core.Filter) string {
	var b strings.Builder
	b.WriteString(sessionID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(version, 10))
	for _, f := range core.AllFields() {
		b.WriteByte('|')
		b.WriteString(mapping[f])
	}
	b.WriteByte('|')
	b.WriteString(dateLayout)
	b.WriteByte('|')
	b.WriteString(strings.Join(filter.Members, ","))
	b.WriteByte('|')
	if !filter.From.IsZero() {
		b.WriteString(filter.From.Format("2006-01-02"))
	}
	b.WriteByte('|')
	if !filter.To.IsZero() {
		b.WriteString(filter.To.Format("2006-01-02"))
	}
	return b.String()
}

// getReport builds (or fetches from cache) the report for a session's
// current dataset, mapping, and the given filter.
func (s *Server) getReport(ctx context.Context, sessionID string, st *session.State, filter core.Filter) (*report.Report, error) {
	table, mapping, layout := st.Snapshot()
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	key := reportKey(sessionID, st.Version(), mapping, layout, filter)
	if rep, found := s.reportCache.Get(key); found {
		slog.DebugContext(ctx, "Report cache hit", "session_id", sessionID)
		return rep, nil
	}

	rep, err := report.Build(ctx, table, mapping, layout, filter)
	if err != nil {
		return nil, err
	}

	s.reportCache.Set(key, rep)
	slog.DebugContext(ctx, "Report cached",
		"session_id", sessionID,
		"rows_used", rep.Stats.RowsUsed,
		"members", len(rep.Members))
	return rep, nil
}

// startCacheCleanup runs periodic cleanup for the report cache.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := s.reportCache.CleanExpired()
			if cleaned > 0 {
				slog.Debug("Cache cleanup completed", "report_entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
