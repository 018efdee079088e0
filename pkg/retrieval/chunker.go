package retrieval

import (
	"regexp"
	"strings"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// paragraphSeparator is a blank line, which may hold spaces or tabs.
var paragraphSeparator = regexp.MustCompile(`\n[ \t]*\n`)

// Document is a named body of text to be indexed.
type Document struct {
	Name string
	Body string
}

// Chunk splits a document into paragraph chunks.
// Ordinals follow the split position, so a blank paragraph leaves a gap.
func Chunk(doc Document) []domain.Chunk {
	body := strings.ReplaceAll(doc.Body, "\r\n", "\n")
	parts := paragraphSeparator.Split(body, -1)

	chunks := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		content := strings.TrimSpace(part)
		if content == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:      domain.ChunkID(doc.Name, i),
			Content: content,
			Source:  doc.Name,
			Index:   i,
		})
	}
	return chunks
}
