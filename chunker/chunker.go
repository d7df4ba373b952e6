// Package chunker splits document text into overlapping, sentence-aligned
// chunks sized by word count.
package chunker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	defaultChunkSize    = 250
	defaultChunkOverlap = 50
	defaultMinChunkSize = 100
)

// Page carries the extracted text of a single document page.
type Page struct {
	Number int
	Text   string
}

// Chunk is one retrievable span of document text. Boundaries never split a
// sentence; overlap is copied word-for-word from the tail of the previous
// chunk.
type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	DocID      string `json:"doc_id"`
	DocType    string `json:"doc_type"`
	Filename   string `json:"filename"`
	PageNumber *int   `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// Chunker accumulates sentences into word-budget windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	minChunkSize int
	split        func(string) []string
}

func New(chunkSize, chunkOverlap, minChunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if minChunkSize < 0 {
		minChunkSize = defaultMinChunkSize
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		minChunkSize: minChunkSize,
		split:        SplitSentences,
	}
}

// ChunkDocument splits a document into chunks. When pages are supplied each
// page is chunked independently so no chunk spans a page break; the chunk
// counter keeps running across pages so chunk ids stay unique per document.
func (c *Chunker) ChunkDocument(text, docID, filename, docType string, pages []Page) []Chunk {
	if len(pages) > 0 {
		chunks := make([]Chunk, 0)
		next := 0
		for _, page := range pages {
			pageNumber := page.Number
			var pageChunks []Chunk
			pageChunks, next = c.chunkText(page.Text, docID, filename, docType, &pageNumber, next)
			chunks = append(chunks, pageChunks...)
		}
		return chunks
	}

	chunks, _ := c.chunkText(text, docID, filename, docType, nil, 0)
	return chunks
}

func (c *Chunker) chunkText(text, docID, filename, docType string, pageNumber *int, startIndex int) ([]Chunk, int) {
	sentences := c.split(text)

	chunks := make([]Chunk, 0)
	var current []string
	currentWords := 0
	chunkIndex := startIndex

	emit := func(parts []string) bool {
		chunkText := strings.Join(parts, " ")
		if len(strings.Fields(chunkText)) < c.minChunkSize {
			// Below the emission floor: dropped, not merged forward.
			return false
		}
		chunks = append(chunks, Chunk{
			ChunkID:    fmt.Sprintf("%s_chunk_%d", docID, chunkIndex),
			DocID:      docID,
			DocType:    docType,
			Filename:   filename,
			PageNumber: pageNumber,
			ChunkIndex: chunkIndex,
			Text:       chunkText,
		})
		chunkIndex++
		return true
	}

	for _, sentence := range sentences {
		wordCount := len(strings.Fields(sentence))

		if currentWords+wordCount > c.chunkSize && len(current) > 0 {
			emit(current)

			if c.chunkOverlap > 0 {
				words := strings.Fields(strings.Join(current, " "))
				from := len(words) - c.chunkOverlap
				if from < 0 {
					from = 0
				}
				overlap := strings.Join(words[from:], " ")
				current = []string{overlap, sentence}
				currentWords = len(words[from:]) + wordCount
			} else {
				current = []string{sentence}
				currentWords = wordCount
			}
			continue
		}

		current = append(current, sentence)
		currentWords += wordCount
	}

	if len(current) > 0 {
		emit(current)
	}

	return chunks, chunkIndex
}

// A sentence boundary is a terminator followed by whitespace and an
// uppercase letter. Deliberately simple; not grammar-aware.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+[A-Z]`)

// SplitSentences splits text into an ordered list of trimmed sentences.
func SplitSentences(text string) []string {
	sentences := make([]string, 0)
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		end := loc[0] + 1
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		// The match consumed the uppercase letter opening the next
		// sentence; back up one byte to keep it.
		start = loc[1] - 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// ChunkContext returns the target chunk's text concatenated with up to
// contextSize neighbouring chunks on each side, ordered by chunk index. The
// target's own text comes back when it is absent from allChunks.
func ChunkContext(chunk Chunk, allChunks []Chunk, contextSize int) string {
	docChunks := make([]Chunk, 0, len(allChunks))
	for _, c := range allChunks {
		if c.DocID == chunk.DocID {
			docChunks = append(docChunks, c)
		}
	}
	sort.Slice(docChunks, func(i, j int) bool {
		return docChunks[i].ChunkIndex < docChunks[j].ChunkIndex
	})

	target := -1
	for i, c := range docChunks {
		if c.ChunkID == chunk.ChunkID {
			target = i
			break
		}
	}
	if target < 0 {
		return chunk.Text
	}

	from := target - contextSize
	if from < 0 {
		from = 0
	}
	to := target + contextSize + 1
	if to > len(docChunks) {
		to = len(docChunks)
	}

	parts := make([]string, 0, to-from)
	for _, c := range docChunks[from:to] {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}
