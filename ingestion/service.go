package ingestion

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claimsight/claimsight/chunker"
	"github.com/claimsight/claimsight/embeddings"
	"github.com/claimsight/claimsight/index"
)

// Status tracks a document through the ingestion pipeline. A document is
// queryable only once it reaches StatusIndexed; chunks added before a
// mid-document failure stay in the index, so the failed status is what
// keeps callers from treating the document as complete.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusIndexed    Status = "indexed"
	StatusFailed     Status = "failed"
)

// Document is the collaborator-visible record of one ingested file.
type Document struct {
	DocID      string    `json:"doc_id"`
	Filename   string    `json:"filename"`
	DocType    string    `json:"doc_type"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Service struct {
	store    index.Store
	embedder embeddings.Embedder
	chunker  *chunker.Chunker
	logger   *log.Logger

	mu   sync.RWMutex
	docs map[string]*Document
}

func NewService(store index.Store, embedder embeddings.Embedder, ch *chunker.Chunker, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:    store,
		embedder: embedder,
		chunker:  ch,
		logger:   logger,
		docs:     make(map[string]*Document),
	}
}

// IngestFile reads a file from disk and ingests it. PDFs are extracted per
// page; plain text is ingested whole.
func (s *Service) IngestFile(ctx context.Context, path, docType string) (Document, error) {
	filename := filepath.Base(path)

	switch DetectFormat(path) {
	case FormatText:
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read file: %w", err)
		}
		return s.IngestText(ctx, string(data), filename, docType)
	case FormatPDF:
		pages, err := ExtractPDFPages(path)
		if err != nil {
			return Document{}, fmt.Errorf("extract pdf: %w", err)
		}
		return s.IngestPages(ctx, pages, filename, docType)
	default:
		return Document{}, fmt.Errorf("unsupported document format: %s", filename)
	}
}

// IngestText chunks, embeds, and indexes a plain-text document.
func (s *Service) IngestText(ctx context.Context, text, filename, docType string) (Document, error) {
	return s.ingest(ctx, text, nil, filename, docType)
}

// IngestPages ingests pre-paginated text so chunks never span pages.
func (s *Service) IngestPages(ctx context.Context, pages []chunker.Page, filename, docType string) (Document, error) {
	return s.ingest(ctx, "", pages, filename, docType)
}

func (s *Service) ingest(ctx context.Context, text string, pages []chunker.Page, filename, docType string) (Document, error) {
	docID := uuid.New().String()

	doc := &Document{
		DocID:      docID,
		Filename:   filename,
		DocType:    docType,
		Status:     StatusProcessing,
		UploadedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.docs[docID] = doc
	s.mu.Unlock()

	chunks := s.chunker.ChunkDocument(text, docID, filename, docType, pages)
	if len(chunks) == 0 {
		return s.fail(docID, fmt.Errorf("no chunks produced for %s", filename))
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return s.fail(docID, fmt.Errorf("generate embeddings: %w", err))
	}
	if len(vectors) != len(chunks) {
		return s.fail(docID, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors)))
	}

	if err := s.store.Add(ctx, vectors, chunks); err != nil {
		return s.fail(docID, fmt.Errorf("index chunks: %w", err))
	}

	s.mu.Lock()
	doc.Status = StatusIndexed
	doc.ChunkCount = len(chunks)
	snapshot := *doc
	s.mu.Unlock()

	s.logger.Printf("ingested %s as %s (%d chunks)", filename, docID, len(chunks))
	return snapshot, nil
}

func (s *Service) fail(docID string, cause error) (Document, error) {
	s.mu.Lock()
	doc := s.docs[docID]
	doc.Status = StatusFailed
	doc.Error = cause.Error()
	snapshot := *doc
	s.mu.Unlock()

	s.logger.Printf("ingest failed for %s: %v", docID, cause)
	return snapshot, cause
}

// Document returns the tracked record for a document id.
func (s *Service) Document(docID string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// Documents lists tracked documents, most recent first.
func (s *Service) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, *doc)
	}
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			if docs[j].UploadedAt.After(docs[i].UploadedAt) {
				docs[i], docs[j] = docs[j], docs[i]
			}
		}
	}
	return docs
}

// Remove forgets the tracked record after the document's chunks are
// deleted from the index.
func (s *Service) Remove(docID string) {
	s.mu.Lock()
	delete(s.docs, docID)
	s.mu.Unlock()
}

// NormalizeDocType maps free-form labels to the known document types,
// defaulting to "other".
func NormalizeDocType(docType string) string {
	switch strings.ToLower(strings.TrimSpace(docType)) {
	case "claim_form", "claim":
		return "claim_form"
	case "policy", "policy_document":
		return "policy"
	case "bill", "hospital_bill", "invoice":
		return "bill"
	case "discharge_summary", "discharge":
		return "discharge_summary"
	default:
		return "other"
	}
}
