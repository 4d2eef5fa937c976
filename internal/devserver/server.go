// Package devserver is a local stand-in for the analytics service. It speaks
// the same HTTP contract as the real service so the client can be exercised
// end to end: uploaded CSV files become tables in a per-session in-memory
// SQLite database and queries are answered by running them as SQL.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	cron "github.com/netresearch/go-cron"

	"github.com/dohr-michael/tabchat/clients/analytics"
	"github.com/dohr-michael/tabchat/internal/upload"
)

var errNoDatabase = errors.New("no database associated with the session")

const (
	msgSessionStarted = "Session started."
	msgUploaded       = "CSV files uploaded and converted to database successfully."
	msgSessionEnded   = "Session ended."

	detailInvalidSession = "Invalid or expired session."
	detailNoDatabase     = "No database associated with the session."
	detailBadCSV         = "Failed to convert CSV file. Please check the CSV file and try again."
	detailInternal       = "Unexpected internal server error"
)

// Options configures the server.
type Options struct {
	Host           string
	Port           int
	SessionTimeout time.Duration
	MaxTables      int
	SweepSchedule  string // cron spec for the expired-session sweep
	Endpoints      analytics.Endpoints
	UploadField    string
}

// Server is the stand-in analytics HTTP server.
type Server struct {
	httpServer *http.Server
	store      *Store
	cron       *cron.Cron
	opts       Options
}

type sessionKey struct{}

// NewServer creates a server; call Start to listen.
func NewServer(opts Options) (*Server, error) {
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 30 * time.Minute
	}
	if opts.MaxTables <= 0 {
		opts.MaxTables = 10
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = "@every 1m"
	}
	if opts.Endpoints == (analytics.Endpoints{}) {
		opts.Endpoints = analytics.DefaultEndpoints()
	}
	if opts.UploadField == "" {
		opts.UploadField = upload.DefaultField
	}

	s := &Server{
		store: NewStore(opts.SessionTimeout),
		cron:  cron.New(),
		opts:  opts,
	}

	if _, err := s.cron.AddFunc(opts.SweepSchedule, s.sweep); err != nil {
		return nil, fmt.Errorf("schedule session sweep %q: %w", opts.SweepSchedule, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logRequests)

	r.Get("/health", s.handleHealth)
	r.Get(opts.Endpoints.StartSession, s.handleStartSession)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post(opts.Endpoints.UploadCSV, s.handleUpload)
		r.Post(opts.Endpoints.Query, s.handleQuery)
		r.Delete(opts.Endpoints.EndSession, s.handleEndSession)
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: r,
	}
	return s, nil
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("analytics dev server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server and drops every session.
func (s *Server) Shutdown(ctx context.Context) error {
	<-s.cron.Stop().Done()
	err := s.httpServer.Shutdown(ctx)
	s.store.Close()
	return err
}

func (s *Server) sweep() {
	if n := s.store.Sweep(); n > 0 {
		slog.Info("expired sessions removed", "count", n, "remaining", s.store.Len())
	}
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(analytics.SessionCookie)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, detailInvalidSession)
			return
		}
		sess, ok := s.store.Get(cookie.Value)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, detailInvalidSession)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *session {
	sess, _ := ctx.Value(sessionKey{}).(*session)
	return sess
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.store.Len()})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     analytics.SessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("session started", "session", sess.id)
	writeJSON(w, http.StatusOK, analytics.InformationResponse{InformationMessage: msgSessionStarted})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart form.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[s.opts.UploadField]
	if len(headers) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "No files uploaded.")
		return
	}
	// Early reject; load checks again under the session lock.
	if len(headers) > s.opts.MaxTables-len(sess.Tables()) {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("You reached max file limit %d", s.opts.MaxTables))
		return
	}

	// Parse everything first so a bad file leaves the session untouched.
	tables := make([]*csvTable, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeDetail(w, http.StatusBadRequest, detailBadCSV)
			return
		}
		t, err := parseCSV(fh.Filename, f)
		f.Close()
		if err != nil {
			slog.Warn("csv rejected", "session", sess.id, "file", fh.Filename, "error", err)
			writeDetail(w, http.StatusBadRequest, detailBadCSV)
			return
		}
		tables = append(tables, t)
	}

	names, err := sess.load(r.Context(), tables, s.opts.MaxTables)
	if errors.Is(err, errTooManyTables) {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("You reached max file limit %d", s.opts.MaxTables))
		return
	}
	if err != nil {
		slog.Error("load tables", "session", sess.id, "error", err)
		writeDetail(w, http.StatusInternalServerError, detailInternal)
		return
	}

	slog.Info("tables loaded", "session", sess.id, "tables", names)
	writeJSON(w, http.StatusOK, analytics.InformationResponse{InformationMessage: msgUploaded})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req analytics.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body.")
		return
	}

	answer, err := sess.query(r.Context(), req.HumanMessage)
	switch {
	case errors.Is(err, errNoDatabase):
		writeDetail(w, http.StatusBadRequest, detailNoDatabase)
		return
	case errors.Is(err, errNotReadOnly):
		writeDetail(w, http.StatusBadRequest, "Only read-only SELECT queries are supported.")
		return
	case err != nil:
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analytics.QueryResponse{AIMessage: answer})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.store.Delete(sess.id)

	http.SetCookie(w, &http.Cookie{
		Name:   analytics.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	slog.Info("session ended", "session", sess.id)
	writeJSON(w, http.StatusOK, analytics.InformationResponse{InformationMessage: msgSessionEnded})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, analytics.ErrorResponse{Detail: detail})
}

// logRequests logs every request with its status and duration.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
