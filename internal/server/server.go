// Package server exposes the chat and RAG maintenance routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"seju-chat/internal/agent"
	"seju-chat/internal/models"
	"seju-chat/internal/retrieve"
	"seju-chat/internal/stream"
)

// AgentRunner produces the snapshot sequence for one chat request and
// closes snaps when done.
type AgentRunner interface {
	Run(ctx context.Context, history []agent.ChatMessage, snaps chan<- stream.Snapshot) error
}

// Retriever answers similarity queries.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedResult, error)
	DefaultK() int
}

// Ingestor rebuilds the vector index from the docs directory.
type Ingestor interface {
	Ingest(ctx context.Context, path string) (int, error)
}

type Server struct {
	agent    AgentRunner
	engine   Retriever
	pipeline Ingestor
	docsDir  string
}

func New(runner AgentRunner, engine Retriever, pipeline Ingestor, docsDir string) *Server {
	return &Server{agent: runner, engine: engine, pipeline: pipeline, docsDir: docsDir}
}

// Handler builds the route table with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/rag/index", s.handleIndex)
	mux.HandleFunc("/api/rag/search", s.handleSearch)

	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	})
	return hlog.NewHandler(log.Logger)(access(mux))
}

// handleChat streams assistant text deltas as text/plain. Failures before
// the first delta produce a JSON error; after it, only an abrupt close can
// signal anything, since a success status has already gone out.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	var req struct {
		Messages []agent.ChatMessage `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "messages is empty"})
		return
	}

	ctx := r.Context()
	snaps := make(chan stream.Snapshot, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- s.agent.Run(ctx, req.Messages, snaps)
	}()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	asm := stream.NewAssembler(newFlushWriter(w))
	consumeErr := asm.Consume(snaps)
	runErr := <-errc

	switch {
	case consumeErr != nil:
		// client went away mid-stream; the request context is canceled
		// with it, which stops the agent
		log.Warn().Err(consumeErr).Msg("chat stream write failed")
		panic(http.ErrAbortHandler)
	case runErr != nil && asm.LastEmitted() == "":
		log.Error().Err(runErr).Msg("chat failed before streaming")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
	case runErr != nil:
		log.Error().Err(runErr).Msg("chat stream failed")
		asm.Fail()
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "method not allowed"})
		return
	}

	count, err := s.pipeline.Ingest(r.Context(), s.docsDir)
	if err != nil {
		log.Error().Err(err).Msg("index rebuild failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"chunks":  count,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "method not allowed"})
		return
	}

	var req struct {
		Query any  `json:"query"`
		K     *int `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request body"})
		return
	}

	query, ok := req.Query.(string)
	if !ok || query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "query is required"})
		return
	}

	k := s.engine.DefaultK()
	if req.K != nil {
		k = *req.K
	}

	results, err := s.engine.Retrieve(r.Context(), query, k)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, retrieve.ErrInvalidK) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("query", query).Msg("search failed")
		writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if results == nil {
		results = []models.RetrievedResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"query":   query,
		"k":       k,
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// flushWriter flushes after every delta so the client sees text as it is
// produced, not when the handler returns.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newFlushWriter(w http.ResponseWriter) flushWriter {
	f, _ := w.(http.Flusher)
	return flushWriter{w: w, f: f}
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil && fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}
