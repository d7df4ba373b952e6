// Package api exposes the document and query workflows over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/claimsight/claimsight/config"
	"github.com/claimsight/claimsight/index"
	"github.com/claimsight/claimsight/ingestion"
	"github.com/claimsight/claimsight/query"
)

const maxTopK = 20

// Server wires the shared services into HTTP handlers. The store, engine,
// and ingestion service are constructed once at startup and shared across
// requests.
type Server struct {
	cfg       config.Config
	store     index.Store
	engine    *query.Engine
	ingestion *ingestion.Service
	logger    *log.Logger
	handler   http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestRequest struct {
	Path     string `json:"path"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
	DocType  string `json:"doc_type"`
}

type queryRequest struct {
	Question string   `json:"question"`
	DocIDs   []string `json:"doc_ids"`
	TopK     int      `json:"top_k"`
}

type chunksResponse struct {
	DocID  string          `json:"doc_id"`
	Chunks []chunkResponse `json:"chunks"`
}

type chunkResponse struct {
	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	PageNumber *int   `json:"page_number"`
	Text       string `json:"text"`
}

func New(cfg config.Config, store index.Store, engine *query.Engine, ingestSvc *ingestion.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:       cfg,
		store:     store,
		engine:    engine,
		ingestion: ingestSvc,
		logger:    logger,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/documents", s.handleIngest)
	mux.HandleFunc("GET /v1/documents", s.handleListDocuments)
	mux.HandleFunc("GET /v1/documents/{id}/chunks", s.handleDocumentChunks)
	mux.HandleFunc("DELETE /v1/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	docType := ingestion.NormalizeDocType(req.DocType)
	ctx := r.Context()

	var (
		doc ingestion.Document
		err error
	)
	switch {
	case strings.TrimSpace(req.Path) != "":
		doc, err = s.ingestion.IngestFile(ctx, req.Path, docType)
	case strings.TrimSpace(req.Text) != "":
		filename := strings.TrimSpace(req.Filename)
		if filename == "" {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("filename is required when ingesting raw text"))
			return
		}
		doc, err = s.ingestion.IngestText(ctx, req.Text, filename, docType)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("either path or text must be provided"))
		return
	}

	if err != nil {
		// The document record carries the failed status; surface both.
		s.logger.Printf("ingest error: %v", err)
		s.writeJSON(w, http.StatusUnprocessableEntity, doc)
		return
	}

	if err := s.store.Save(ctx); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("save index: %w", err))
		return
	}

	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ingestion.Documents())
}

func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	chunks, err := s.store.ChunksByDoc(r.Context(), docID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("list chunks: %w", err))
		return
	}

	resp := chunksResponse{DocID: docID, Chunks: make([]chunkResponse, 0, len(chunks))}
	for _, chunk := range chunks {
		resp.Chunks = append(resp.Chunks, chunkResponse{
			ChunkID:    chunk.ChunkID,
			ChunkIndex: chunk.ChunkIndex,
			PageNumber: chunk.PageNumber,
			Text:       chunk.Text,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	ctx := r.Context()

	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("delete document: %w", err))
		return
	}
	if err := s.store.Save(ctx); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("save index: %w", err))
		return
	}
	s.ingestion.Remove(docID)

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "document deleted"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.cfg.TopK
	}
	if topK < 1 || topK > maxTopK {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("top_k must be between 1 and %d", maxTopK))
		return
	}

	result, err := s.engine.Answer(r.Context(), req.Question, req.DocIDs, topK)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuestion) {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("answer query: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("index stats: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
