package domain

import (
	"fmt"
	"strings"
)

// Chunk is a span of document text. Identity is (Source, Index).
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Index   int    `json:"index"`

	// Score is only populated on retrieval results.
	Score float64 `json:"score,omitempty"`
}

// ChunkID derives the stable chunk identifier "<document>::chunk<ordinal>".
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s::chunk%d", source, index)
}

// WithScore returns a copy of the chunk annotated with a similarity score.
func (c Chunk) WithScore(score float64) Chunk {
	c.Score = score
	return c
}

// Plan holds the constraints extracted to guide query generation.
type Plan struct {
	DateRange  string `json:"date_range" mapstructure:"date_range"`
	Entities   string `json:"entities" mapstructure:"entities"`
	KPIFormula string `json:"kpi_formula" mapstructure:"kpi_formula"`
}

// IsZero reports whether no constraint was extracted.
func (p Plan) IsZero() bool {
	return p == Plan{}
}

// String serialises the plan the way it is handed to query generation.
func (p Plan) String() string {
	return fmt.Sprintf("date_range: %s\nentities: %s\nkpi_formula: %s", p.DateRange, p.Entities, p.KPIFormula)
}

// QueryResult is the outcome of executing query text against a backend.
// A non-empty Error means the query failed and Columns/Rows are empty.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Error   string           `json:"error,omitempty"`
}

// FailedResult builds a QueryResult carrying only an error message.
func FailedResult(err error) QueryResult {
	return QueryResult{Columns: []string{}, Rows: []map[string]any{}, Error: err.Error()}
}

// Failed reports whether the execution produced an error.
func (r QueryResult) Failed() bool {
	return r.Error != ""
}

// Clone copies the columns, the rows and each row map.
func (r QueryResult) Clone() QueryResult {
	out := QueryResult{Error: r.Error}
	if r.Columns != nil {
		out.Columns = append([]string(nil), r.Columns...)
	}
	if r.Rows != nil {
		out.Rows = make([]map[string]any, len(r.Rows))
		for i, row := range r.Rows {
			cp := make(map[string]any, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out.Rows[i] = cp
		}
	}
	return out
}

// String renders the result as a compact text table for prompts.
func (r QueryResult) String() string {
	if r.Failed() {
		return "error: " + r.Error
	}
	var sb strings.Builder
	sb.WriteString("columns: ")
	sb.WriteString(strings.Join(r.Columns, ", "))
	sb.WriteString("\n")
	for _, row := range r.Rows {
		cells := make([]string, len(r.Columns))
		for i, col := range r.Columns {
			cells[i] = fmt.Sprintf("%v", row[col])
		}
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatContext serialises retrieved chunks for reasoning prompts.
func FormatContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return "(no context)"
	}
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s] (score %.3f)\n%s", c.ID, c.Score, c.Content)
	}
	return sb.String()
}
