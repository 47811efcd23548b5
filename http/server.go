package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ShutdownTimeout bounds graceful shutdown of the server.
const ShutdownTimeout = 10 * time.Second

// maxRequestBytes bounds the size of a request body.
const maxRequestBytes = 1 << 20

// GenericError is returned in place of internal failure detail.
const GenericError = "Something went wrong. Please try again later."

// Server serves the chat and manifest API.
type Server struct {
	router chi.Router
	server *http.Server
	ln     net.Listener

	Asker     idedocs.Asker
	Tools     idedocs.ToolService
	Manifests idedocs.ManifestService
	Statuses  idedocs.IngestService
	Logger    *slog.Logger
}

// NewServer returns a Server with its routes registered.
func NewServer(asker idedocs.Asker, tools idedocs.ToolService, manifests idedocs.ManifestService, statuses idedocs.IngestService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		Asker:     asker,
		Tools:     tools,
		Manifests: manifests,
		Statuses:  statuses,
		Logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", s.handleHealth)
	r.Get("/tools", s.handleListTools)
	r.Route("/tools/{toolID}", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/manifest", s.handleManifest)
		r.Get("/ingests", s.handleIngests)
	})
	s.router = r
	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Open starts listening on addr and serves requests in the background.
func (s *Server) Open(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("server stopped", "err", err)
		}
	}()
	s.Logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the listening address, or "" before Open.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.Error(w, r, idedocs.Errorf(idedocs.EINVALID, "invalid JSON body"))
		return
	}

	resp, err := s.Asker.Ask(r.Context(), idedocs.AskRequest{
		ToolID:         chi.URLParam(r, "toolID"),
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.Manifests.FindManifest(r.Context(), chi.URLParam(r, "toolID"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.Tools.FindTools(r.Context(), idedocs.ToolFilter{})
	if err != nil {
		s.Error(w, r, err)
		return
	}
	if tools == nil {
		tools = []*idedocs.Tool{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleIngests(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")
	if _, err := s.Tools.FindToolByID(r.Context(), toolID); err != nil {
		s.Error(w, r, err)
		return
	}
	statuses, err := s.Statuses.FindIngestStatuses(r.Context(), toolID)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	if statuses == nil {
		statuses = []*idedocs.IngestStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingests": statuses})
}

// Error writes err as a JSON error response. Internal and provider
// failures are logged and replaced by GenericError.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	code := idedocs.ErrorCode(err)
	msg := idedocs.ErrorMessage(err)
	status := ErrorStatusCode(code)
	if status >= http.StatusInternalServerError || code == idedocs.ECONFIG {
		s.Logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"code", code,
			"err", err,
		)
		msg = GenericError
	}
	if hint := idedocs.RetryAfterHint(err); hint > 0 {
		w.Header().Set("Retry-After", retryAfterSeconds(hint))
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

var codes = map[string]int{
	idedocs.ECONFLICT:    http.StatusConflict,
	idedocs.EINVALID:     http.StatusBadRequest,
	idedocs.ENOTFOUND:    http.StatusNotFound,
	idedocs.EINTERNAL:    http.StatusInternalServerError,
	idedocs.ECONFIG:      http.StatusInternalServerError,
	idedocs.EUNAVAILABLE: http.StatusServiceUnavailable,
	idedocs.ERATELIMIT:   http.StatusTooManyRequests,
}

// ErrorStatusCode returns the HTTP status of an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

func retryAfterSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	return strconv.Itoa(secs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs every request with its status and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(begin),
			)
		})
	}
}
