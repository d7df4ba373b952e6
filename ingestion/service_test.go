package ingestion

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/claimsight/claimsight/chunker"
	"github.com/claimsight/claimsight/embeddings"
	"github.com/claimsight/claimsight/index"
)

type stubEmbedder struct {
	dimension int
	err       error
}

func (s *stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, s.dimension)
	}
	return vectors, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

type stubStore struct {
	added int
	err   error
}

func (s *stubStore) Add(ctx context.Context, vectors [][]float32, chunks []chunker.Chunk) error {
	if s.err != nil {
		return s.err
	}
	s.added += len(chunks)
	return nil
}

func (s *stubStore) Search(ctx context.Context, query []float32, topK int, docIDs []string) ([]index.Match, error) {
	return nil, nil
}

func (s *stubStore) DeleteDocument(ctx context.Context, docID string) error { return nil }

func (s *stubStore) ChunksByDoc(ctx context.Context, docID string) ([]chunker.Chunk, error) {
	return nil, nil
}

func (s *stubStore) Stats(ctx context.Context) (index.Stats, error) { return index.Stats{}, nil }

func (s *stubStore) Save(ctx context.Context) error { return nil }

var _ index.Store = (*stubStore)(nil)

func testService(store index.Store, embedder embeddings.Embedder) *Service {
	return NewService(store, embedder, chunker.New(30, 5, 5), log.New(io.Discard, "", 0))
}

func words(n int) string {
	parts := make([]string, n)
	parts[0] = "Claim"
	for i := 1; i < n; i++ {
		parts[i] = "detail"
	}
	return strings.Join(parts, " ") + "."
}

func TestIngestTextIndexesDocument(t *testing.T) {
	store := &stubStore{}
	svc := testService(store, &stubEmbedder{dimension: 4})

	doc, err := svc.IngestText(context.Background(), words(20)+" "+words(20), "claim.txt", "claim_form")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != StatusIndexed {
		t.Fatalf("expected indexed status, got %s", doc.Status)
	}
	if doc.ChunkCount == 0 || store.added != doc.ChunkCount {
		t.Fatalf("expected chunks added to the index, got count=%d added=%d", doc.ChunkCount, store.added)
	}

	tracked, ok := svc.Document(doc.DocID)
	if !ok || tracked.Status != StatusIndexed {
		t.Fatalf("expected tracked indexed document, got %+v (found=%v)", tracked, ok)
	}
}

func TestIngestTextEmptyDocumentFails(t *testing.T) {
	svc := testService(&stubStore{}, &stubEmbedder{dimension: 4})

	doc, err := svc.IngestText(context.Background(), "   ", "empty.txt", "other")
	if err == nil {
		t.Fatal("expected error for empty document")
	}
	if doc.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", doc.Status)
	}
	if doc.Error == "" {
		t.Fatal("expected error text recorded on the document")
	}
}

func TestIngestTextEmbeddingFailureMarksFailed(t *testing.T) {
	svc := testService(&stubStore{}, &stubEmbedder{err: errors.New("provider down")})

	doc, err := svc.IngestText(context.Background(), words(20), "claim.txt", "claim_form")
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if doc.Status != StatusFailed {
		t.Fatalf("document must not be presented as queryable, got status %s", doc.Status)
	}
}

func TestIngestPagesKeepsPageNumbers(t *testing.T) {
	store := &stubStore{}
	svc := testService(store, &stubEmbedder{dimension: 4})

	pages := []chunker.Page{
		{Number: 1, Text: words(20)},
		{Number: 2, Text: words(20)},
	}
	doc, err := svc.IngestPages(context.Background(), pages, "claim.pdf", "claim_form")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != StatusIndexed || doc.ChunkCount != 2 {
		t.Fatalf("expected 2 indexed chunks, got %+v", doc)
	}
}

func TestRemoveForgetsDocument(t *testing.T) {
	svc := testService(&stubStore{}, &stubEmbedder{dimension: 4})

	doc, err := svc.IngestText(context.Background(), words(20), "claim.txt", "claim_form")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.Remove(doc.DocID)
	if _, ok := svc.Document(doc.DocID); ok {
		t.Fatal("expected document to be forgotten after removal")
	}
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]DocumentFormat{
		"claim.txt":     FormatText,
		"claim.PDF":     FormatPDF,
		"scan.jpeg":     FormatUnknown,
		"notes.text":    FormatText,
		"dir/claim.pdf": FormatPDF,
	}
	for path, want := range cases {
		if got := DetectFormat(path); got != want {
			t.Fatalf("DetectFormat(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestNormalizeDocType(t *testing.T) {
	cases := map[string]string{
		"claim":     "claim_form",
		"POLICY":    "policy",
		"invoice":   "bill",
		"discharge": "discharge_summary",
		"mystery":   "other",
		"":          "other",
	}
	for in, want := range cases {
		if got := NormalizeDocType(in); got != want {
			t.Fatalf("NormalizeDocType(%q) = %q, want %q", in, got, want)
		}
	}
}
