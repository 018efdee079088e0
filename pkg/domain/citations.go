package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CitationKind tags the shape a synthesis capability returned citations in.
type CitationKind int

const (
	CitationsRawText CitationKind = iota
	CitationsStructured
)

// Citations is a tagged union: raw model text, or an already structured list.
// Normalize converts either shape to the list stored in SharedState.
type Citations struct {
	Kind  CitationKind
	Text  string
	Items []string
}

// RawCitations wraps citation text that still needs parsing.
func RawCitations(text string) Citations {
	return Citations{Kind: CitationsRawText, Text: text}
}

// StructuredCitations wraps an already structured citation list.
func StructuredCitations(items ...string) Citations {
	return Citations{Kind: CitationsStructured, Items: items}
}

// Normalize returns the citation list.
//
// Structured lists are used as-is. Raw text has any code fence removed and is
// parsed as a JSON array; non-string elements are rendered as text. Text that is
// not a JSON array is wrapped as a single-element list. Blank text yields an empty list.
func (c Citations) Normalize() []string {
	if c.Kind == CitationsStructured {
		return cloneSlice(c.Items)
	}

	text := strings.TrimSpace(c.Text)
	if text == "" {
		return []string{}
	}

	var decoded any
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &decoded); err == nil {
		if arr, ok := decoded.([]any); ok {
			out := make([]string, 0, len(arr))
			for _, el := range arr {
				out = append(out, citationText(el))
			}
			return out
		}
	}
	return []string{text}
}

func citationText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

const fence = "```"

// knownFenceTags are fence language tags recognised even when followed by code on the same line.
var knownFenceTags = map[string]bool{
	"sql": true, "sqlite": true, "postgresql": true, "postgres": true, "json": true, "text": true,
}

// StripCodeFence removes a leading and a trailing markdown code fence, including
// an optional language tag after the opening fence, and trims whitespace.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, fence) {
		s = s[len(fence):]
		i := 0
		for i < len(s) && isTagByte(s[i]) {
			i++
		}
		tag := s[:i]
		rest := s[i:]
		if tag != "" && (rest == "" || rest[0] == '\n' || rest[0] == '\r' || knownFenceTags[strings.ToLower(tag)]) {
			s = rest
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isTagByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_' || b == '-' || b == '+'
}
