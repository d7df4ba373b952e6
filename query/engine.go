// Package query answers natural-language questions by retrieving indexed
// chunks and conditioning a generative backend on them, with a
// deterministic extraction fallback when generation fails.
package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/claimsight/claimsight/embeddings"
	"github.com/claimsight/claimsight/index"
	"github.com/claimsight/claimsight/llm"
)

const defaultTopK = 5

// ErrEmptyQuestion rejects a blank question before any embedding work.
var ErrEmptyQuestion = errors.New("question cannot be empty")

const insufficientAnswer = "I don't have enough information to answer this question. Please upload relevant documents first."

// Source is one retrieved chunk backing an answer.
type Source struct {
	Text            string  `json:"text"`
	DocID           string  `json:"doc_id"`
	Filename        string  `json:"filename"`
	DocType         string  `json:"doc_type"`
	PageNumber      *int    `json:"page_number"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Result is the engine's answer to one question. Confidence is a heuristic
// derived from retrieval similarity, not a calibrated probability. Degraded
// marks answers produced by the extraction fallback rather than the
// generative backend.
type Result struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	Degraded   bool     `json:"degraded,omitempty"`
}

type Engine struct {
	store    index.Store
	embedder embeddings.Embedder
	llm      llm.Client
	logger   *log.Logger
}

func NewEngine(store index.Store, embedder embeddings.Embedder, llmClient llm.Client, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		llm:      llmClient,
		logger:   logger,
	}
}

// Answer embeds the question, retrieves up to topK chunks (optionally
// restricted to docIDs), and synthesises an answer. Generation failures
// degrade the answer instead of failing the call; only validation and
// retrieval-infrastructure errors surface.
func (e *Engine) Answer(ctx context.Context, question string, docIDs []string, topK int) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	vector, err := e.embedder.EmbedOne(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embed question: %w", err)
	}

	// The index serialises access internally; nothing else is held across
	// the slow embedding and generation calls.
	matches, err := e.store.Search(ctx, vector, topK, docIDs)
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}

	if len(matches) == 0 {
		return Result{
			Question:   question,
			Answer:     insufficientAnswer,
			Sources:    []Source{},
			Confidence: 0.0,
		}, nil
	}

	sources := make([]Source, 0, len(matches))
	contextParts := make([]string, 0, len(matches))
	for i, match := range matches {
		contextParts = append(contextParts, fmt.Sprintf("[Source %d]: %s", i+1, match.Chunk.Text))
		sources = append(sources, Source{
			Text:            match.Chunk.Text,
			DocID:           match.Chunk.DocID,
			Filename:        match.Chunk.Filename,
			DocType:         match.Chunk.DocType,
			PageNumber:      match.Chunk.PageNumber,
			SimilarityScore: match.Similarity,
		})
	}
	contextBlock := strings.Join(contextParts, "\n\n")

	answer, degraded := e.generate(ctx, question, contextBlock)

	var total float64
	for _, source := range sources {
		total += source.SimilarityScore
	}
	confidence := total / float64(len(sources)) * 1.2
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Result{
		Question:   question,
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
		Degraded:   degraded,
	}, nil
}

func (e *Engine) generate(ctx context.Context, question, contextBlock string) (string, bool) {
	prompt := buildPrompt(question, contextBlock)

	answer, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		e.logger.Printf("generation failed, using extraction fallback: %v", err)
		return ExtractAnswer(question, contextBlock), true
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		e.logger.Printf("generation returned empty answer, using extraction fallback")
		return ExtractAnswer(question, contextBlock), true
	}

	return answer, false
}

func buildPrompt(question, contextBlock string) string {
	var sb strings.Builder
	sb.WriteString("You are an AI assistant helping with insurance claim analysis. Answer the question based ONLY on the provided context from insurance documents.\n\n")
	sb.WriteString("Context from documents:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nInstructions:\n")
	sb.WriteString("1. Answer based ONLY on the information in the context above\n")
	sb.WriteString("2. If the context doesn't contain enough information, say so clearly\n")
	sb.WriteString("3. Be specific and cite relevant details from the documents\n")
	sb.WriteString("4. Keep your answer concise and factual\n")
	sb.WriteString("5. If mentioning amounts, dates, or policy numbers, quote them exactly as they appear\n\n")
	sb.WriteString("Answer:")
	return sb.String()
}
