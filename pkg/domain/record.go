package domain

import "time"

// Question is one input item: an identifier, the question and the expected answer format.
type Question struct {
	ID         string `json:"id" validate:"required"`
	Question   string `json:"question" validate:"required"`
	FormatHint string `json:"format_hint"`
}

// Output is the externally visible result of one run.
type Output struct {
	ID          string   `json:"id"`
	FinalAnswer any      `json:"final_answer"`
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
}

// NewOutput extracts the output fields from a finished state.
func NewOutput(id string, s SharedState) Output {
	citations := s.Citations
	if citations == nil {
		citations = []string{}
	}
	return Output{
		ID:          id,
		FinalAnswer: s.FinalAnswer,
		SQL:         s.SQLQuery,
		Confidence:  s.Confidence(),
		Explanation: s.Explanation,
		Citations:   citations,
	}
}

// RunRecord is what the answer store persists for a completed run.
// Errors keeps the literal error text that the Output deliberately hides.
type RunRecord struct {
	Question    Question  `json:"question"`
	Output      Output    `json:"output"`
	Strategy    Strategy  `json:"strategy"`
	Path        []NodeID  `json:"path"`
	Errors      []string  `json:"errors"`
	RepairCount int       `json:"repair_count"`
	CompletedAt time.Time `json:"completed_at"`
}

// Clone copies the record and its slices. FinalAnswer is shared.
func (r RunRecord) Clone() RunRecord {
	out := r
	out.Output.Citations = cloneSlice(r.Output.Citations)
	out.Path = cloneSlice(r.Path)
	out.Errors = cloneSlice(r.Errors)
	return out
}
