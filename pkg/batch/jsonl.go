package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/hybridqa/internal/validator"
	"github.com/aretw0/hybridqa/pkg/domain"
)

// maxLine is the longest input line accepted.
const maxLine = 1 << 20

// LineError points at the input line a question failed to parse or validate on.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ReadQuestions parses one question object per line. Blank lines are skipped.
// Every question needs an id and a question; ids must be unique.
func ReadQuestions(r io.Reader) ([]domain.Question, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var (
		out  []domain.Question
		seen = map[string]int{}
		line int
	)
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		if err := validator.Struct(q); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		if prev, dup := seen[q.ID]; dup {
			return nil, &LineError{Line: line, Err: fmt.Errorf("duplicate id %q (first seen on line %d)", q.ID, prev)}
		}
		seen[q.ID] = line
		out = append(out, q)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return out, nil
}

// WriteOutputs writes one output object per line, in the given order.
func WriteOutputs(w io.Writer, outputs []domain.Output) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, o := range outputs {
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("write output %s: %w", o.ID, err)
		}
	}
	return nil
}
