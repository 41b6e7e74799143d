package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/yuin/goldmark"

	"github.com/coursebot/course-rag/internal/retrieval"
	"github.com/coursebot/course-rag/pkg/models"
)

// Retriever produces the bounded evidence set for a request.
type Retriever interface {
	Retrieve(ctx context.Context, req models.UserRequest) (*retrieval.Evidence, error)
}

// Answerer turns evidence and a question into the final answer.
type Answerer interface {
	Answer(ctx context.Context, evidence *retrieval.Evidence, question string) models.AnswerResult
}

// Config holds HTTP server configuration.
type Config struct {
	Addr       string
	ReadmePath string
}

// Server is the question-answering HTTP API. The retriever and
// answerer are shared, read-only collaborators constructed once at
// startup and injected here.
type Server struct {
	httpServer *http.Server
	retriever  Retriever
	answerer   Answerer
	readmePath string
}

// New creates the HTTP server.
func New(config Config, retriever Retriever, answerer Answerer) *Server {
	s := &Server{
		retriever:  retriever,
		answerer:   answerer,
		readmePath: config.ReadmePath,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/", s.handleAsk)
	mux.HandleFunc("GET /", s.handleReadme)

	s.httpServer = &http.Server{
		Addr:    config.Addr,
		Handler: mux,
	}
	return s
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	slog.Info("serving HTTP API", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleAsk answers one question: validate, retrieve, assemble.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	evidence, err := s.retriever.Retrieve(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, retrieval.ErrMissingQuestion), errors.Is(err, retrieval.ErrInvalidImage):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("retrieval failed", "error", err)
			writeError(w, http.StatusInternalServerError, "retrieval failed")
		}
		return
	}

	result := s.answerer.Answer(r.Context(), evidence, req.Question)
	writeJSON(w, http.StatusOK, result)
}

// readmeTemplate wraps the rendered markdown in a minimal page.
const readmeTemplate = `<html>
	<head><title>README</title></head>
	<body>
		<div style="max-width: 800px; margin: 0 auto;">
			<h1>README</h1>
			%s
		</div>
	</body>
</html>`

// handleReadme renders the local README as HTML.
func (s *Server) handleReadme(w http.ResponseWriter, r *http.Request) {
	source, err := os.ReadFile(s.readmePath)
	if err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<h1>README.md file not found!</h1>")
		return
	}

	var rendered bytes.Buffer
	if err := goldmark.Convert(source, &rendered); err != nil {
		slog.Error("failed to render README", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render README")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, readmeTemplate, rendered.String())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
