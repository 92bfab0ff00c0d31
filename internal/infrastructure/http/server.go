// Package http serves the chat UI and its JSON/SSE API.
package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/usecases"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// ChatService is the conversation the UI drives.
type ChatService interface {
	State() usecases.SessionState
	Config() entities.SessionConfig
	Reload(ctx context.Context, cfg entities.SessionConfig) error
	History(ctx context.Context) ([]entities.ChatMessage, error)
	Clear(ctx context.Context) ([]entities.ChatMessage, error)
	Send(ctx context.Context, input string, cb usecases.Callbacks) (*entities.ChatMessage, *entities.Answer, error)
}

// Server is the HTTP server for the chat UI and API.
type Server struct {
	chat      ChatService
	models    []string
	templates *template.Template
	addr      string
	log       logger.Logger
}

// NewServer creates a new HTTP server. models lists the selectable chat
// models in display order.
func NewServer(chat ChatService, models []string, addr string, log logger.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Server{
		chat:      chat,
		models:    models,
		templates: tmpl,
		addr:      addr,
		log:       log,
	}, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	staticContent, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))

	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("POST /api/session", s.handleReload)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/history/clear", s.handleClear)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return requestIDMiddleware(s.log, loggingMiddleware(corsMiddleware(mux)))
}

// Start runs the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // Longer for streaming
	}

	s.log.Info("Plan and Building Law chat starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type variantOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type optionsResponse struct {
	Models   []string               `json:"models"`
	Variants []variantOption        `json:"variants"`
	Config   entities.SessionConfig `json:"config"`
	State    string                 `json:"state"`
	History  []entities.ChatMessage `json:"-"`
}

func (s *Server) options() optionsResponse {
	variants := make([]variantOption, 0, len(entities.Variants))
	for _, v := range entities.Variants {
		variants = append(variants, variantOption{ID: v.String(), Label: v.Label()})
	}
	return optionsResponse{
		Models:   s.models,
		Variants: variants,
		Config:   s.chat.Config(),
		State:    s.chat.State().String(),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.options()
	history, err := s.chat.History(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	data.History = history

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.FromContext(r.Context()).Error("Render index failed", "error", err)
	}
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.options())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var cfg entities.SessionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, r, apperr.Configuration("invalid session config: %v", err))
		return
	}
	if err := s.chat.Reload(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": s.chat.Config(), "state": s.chat.State().String()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.History(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.Clear(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// handleChat answers one message without streaming.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Configuration("invalid chat request: %v", err))
		return
	}

	msg, answer, err := s.chat.Send(r.Context(), req.Message, usecases.Callbacks{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "steps": answer.Steps})
}

// handleChatStream answers one message over SSE. Token events may be followed
// by tool notices; the final event carries the stored assistant message.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	cb := usecases.Callbacks{
		OnToken: func(token string) {
			sendSSE(w, flusher, map[string]any{"content": token})
		},
		OnTool: func(name, input string) {
			sendSSE(w, flusher, map[string]any{"tool": name, "query": input})
		},
	}

	msg, answer, err := s.chat.Send(r.Context(), query, cb)
	if err != nil {
		kind, _ := apperr.KindOf(err)
		sendSSE(w, flusher, map[string]any{"error": err.Error(), "kind": kind, "done": true})
		return
	}
	sendSSE(w, flusher, map[string]any{"done": true, "message": msg, "steps": answer.Steps})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": s.chat.State().String()})
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data map[string]any) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind, _ := apperr.KindOf(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err, "kind", kind)
	} else {
		log.Warn("Request rejected", "error", err, "kind", kind)
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "kind": kind})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case apperr.KindConfiguration:
		return http.StatusBadRequest
	case apperr.KindRequestTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindModelAPI, apperr.KindEmbeddingService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func requestIDMiddleware(base logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logger.ContextWithLogger(r.Context(), base.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.FromContext(r.Context()).Info("HTTP request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
