package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claimsight/claimsight/chunker"
	"github.com/claimsight/claimsight/config"
	"github.com/claimsight/claimsight/index"
	"github.com/claimsight/claimsight/ingestion"
	"github.com/claimsight/claimsight/query"
)

type stubEmbedder struct{ dimension int }

func (s *stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, s.dimension), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, s.dimension)
	}
	return vectors, nil
}

type stubLLM struct{ answer string }

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return s.answer, nil
}

type stubStore struct {
	matches []index.Match
	chunks  []chunker.Chunk
	deleted []string
	saved   int
}

func (s *stubStore) Add(ctx context.Context, vectors [][]float32, chunks []chunker.Chunk) error {
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *stubStore) Search(ctx context.Context, query []float32, topK int, docIDs []string) ([]index.Match, error) {
	return s.matches, nil
}

func (s *stubStore) DeleteDocument(ctx context.Context, docID string) error {
	s.deleted = append(s.deleted, docID)
	return nil
}

func (s *stubStore) ChunksByDoc(ctx context.Context, docID string) ([]chunker.Chunk, error) {
	var out []chunker.Chunk
	for _, chunk := range s.chunks {
		if chunk.DocID == docID {
			out = append(out, chunk)
		}
	}
	return out, nil
}

func (s *stubStore) Stats(ctx context.Context) (index.Stats, error) {
	return index.Stats{TotalChunks: len(s.chunks), EmbeddingDim: 4}, nil
}

func (s *stubStore) Save(ctx context.Context) error {
	s.saved++
	return nil
}

var _ index.Store = (*stubStore)(nil)

func testServer(store *stubStore) *Server {
	logger := log.New(io.Discard, "", 0)
	embedder := &stubEmbedder{dimension: 4}
	engine := query.NewEngine(store, embedder, &stubLLM{answer: "the claim was approved"}, logger)
	svc := ingestion.NewService(store, embedder, chunker.New(30, 5, 5), logger)

	cfg := config.Config{TopK: 5}
	return New(cfg, store, engine, svc, logger)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := testServer(&stubStore{})

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestIngestTextDocument(t *testing.T) {
	store := &stubStore{}
	s := testServer(store)

	text := "The claim was filed on March first with supporting documents attached for review. " +
		"The adjuster approved the full amount after verifying the hospital records in detail."
	rec := doJSON(t, s, http.MethodPost, "/v1/documents", map[string]any{
		"text":     text,
		"filename": "claim.txt",
		"doc_type": "claim",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var doc ingestion.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Status != ingestion.StatusIndexed {
		t.Fatalf("expected indexed document, got %+v", doc)
	}
	if doc.DocType != "claim_form" {
		t.Fatalf("expected normalized doc type claim_form, got %q", doc.DocType)
	}
	if store.saved == 0 {
		t.Fatal("expected index save after successful ingest")
	}
}

func TestIngestRejectsMissingPayload(t *testing.T) {
	s := testServer(&stubStore{})

	rec := doJSON(t, s, http.MethodPost, "/v1/documents", map[string]any{"doc_type": "claim"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestRejectsTextWithoutFilename(t *testing.T) {
	s := testServer(&stubStore{})

	rec := doJSON(t, s, http.MethodPost, "/v1/documents", map[string]any{"text": "some text"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestFailureReportsDocument(t *testing.T) {
	s := testServer(&stubStore{})

	rec := doJSON(t, s, http.MethodPost, "/v1/documents", map[string]any{
		"text":     "   ",
		"filename": "empty.txt",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var doc ingestion.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Status != ingestion.StatusFailed || doc.Error == "" {
		t.Fatalf("expected failed document with error, got %+v", doc)
	}
}

func TestQueryReturnsAnswer(t *testing.T) {
	page := 2
	store := &stubStore{matches: []index.Match{
		{
			Chunk: chunker.Chunk{
				ChunkID:    "doc-1_chunk_0",
				DocID:      "doc-1",
				Filename:   "claim.pdf",
				DocType:    "claim_form",
				PageNumber: &page,
				Text:       "Claim amount: Rs. 85,000.00 approved.",
			},
			Similarity: 0.5,
		},
	}}
	s := testServer(store)

	rec := doJSON(t, s, http.MethodPost, "/v1/query", map[string]any{
		"question": "What is the claim amount?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result query.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Answer != "the claim was approved" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Sources) != 1 || result.Sources[0].DocID != "doc-1" {
		t.Fatalf("unexpected sources %+v", result.Sources)
	}
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	s := testServer(&stubStore{})

	rec := doJSON(t, s, http.MethodPost, "/v1/query", map[string]any{"question": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryRejectsTopKOutOfBounds(t *testing.T) {
	s := testServer(&stubStore{})

	for _, topK := range []int{-1, 21, 100} {
		rec := doJSON(t, s, http.MethodPost, "/v1/query", map[string]any{
			"question": "what happened?",
			"top_k":    topK,
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("top_k=%d: expected 400, got %d", topK, rec.Code)
		}
	}
}

func TestQueryRejectsUnknownFields(t *testing.T) {
	s := testServer(&stubStore{})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"x","nope":1}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestDeleteDocumentRemovesAndSaves(t *testing.T) {
	store := &stubStore{}
	s := testServer(store)

	rec := doJSON(t, s, http.MethodDelete, "/v1/documents/doc-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "doc-1" {
		t.Fatalf("expected delete of doc-1, got %v", store.deleted)
	}
	if store.saved == 0 {
		t.Fatal("expected index save after delete")
	}
}

func TestDocumentChunks(t *testing.T) {
	store := &stubStore{chunks: []chunker.Chunk{
		{ChunkID: "doc-1_chunk_0", DocID: "doc-1", ChunkIndex: 0, Text: "first"},
		{ChunkID: "doc-1_chunk_1", DocID: "doc-1", ChunkIndex: 1, Text: "second"},
		{ChunkID: "doc-2_chunk_0", DocID: "doc-2", ChunkIndex: 0, Text: "other"},
	}}
	s := testServer(store)

	rec := doJSON(t, s, http.MethodGet, "/v1/documents/doc-1/chunks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp chunksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DocID != "doc-1" || len(resp.Chunks) != 2 {
		t.Fatalf("unexpected chunks response %+v", resp)
	}
}

func TestStats(t *testing.T) {
	store := &stubStore{chunks: []chunker.Chunk{{ChunkID: "a", DocID: "doc-1"}}}
	s := testServer(store)

	rec := doJSON(t, s, http.MethodGet, "/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats index.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalChunks != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
