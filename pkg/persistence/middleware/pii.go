package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/ports"
)

const mask = "***"

type piiMiddleware struct {
	next     ports.AnswerStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks every match of the patterns in the question text,
// the explanation and the recorded errors before a record is stored.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.AnswerStore) ports.AnswerStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, runID string, record *domain.RunRecord) error {
	// The caller keeps using its record, so mask a copy.
	cloned := record.Clone()
	cloned.Question.Question = m.maskText(cloned.Question.Question)
	cloned.Output.Explanation = m.maskText(cloned.Output.Explanation)
	for i, e := range cloned.Errors {
		cloned.Errors[i] = m.maskText(e)
	}
	return m.next.Save(ctx, runID, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) maskText(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, mask)
	}
	return s
}
