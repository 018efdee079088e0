package domain

import "fmt"

// SharedState is the record threaded through every node of one run.
// It is created fresh per question and discarded once the output is extracted.
type SharedState struct {
	// Question and FormatHint are immutable inputs; Update cannot touch them.
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`

	Strategy    Strategy    `json:"strategy"`
	Context     []Chunk     `json:"context"`
	Plan        Plan        `json:"plan"`
	SQLQuery    string      `json:"sql_query"`
	SQLResult   QueryResult `json:"sql_result"`
	FinalAnswer any         `json:"final_answer"`
	Explanation string      `json:"explanation"`
	Citations   []string    `json:"citations"`
	Errors      []string    `json:"errors"`
	RepairCount int         `json:"repair_count"`
}

// NewSharedState creates the initial state for a question.
func NewSharedState(question, formatHint string) SharedState {
	return SharedState{
		Question:   question,
		FormatHint: formatHint,
		Context:    []Chunk{},
		Citations:  []string{},
		Errors:     []string{},
	}
}

// Update is the partial result of a node. Only fields wrapped with Some are merged;
// absent fields leave the state untouched.
type Update struct {
	Strategy    Optional[Strategy]
	Context     Optional[[]Chunk]
	Plan        Optional[Plan]
	SQLQuery    Optional[string]
	SQLResult   Optional[QueryResult]
	FinalAnswer Optional[any]
	Explanation Optional[string]
	Citations   Optional[[]string]
	Errors      Optional[[]string]
	RepairCount Optional[int]
}

// Fields lists the names of the fields present in the update.
func (u Update) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(u.Strategy.IsSet(), "strategy")
	add(u.Context.IsSet(), "context")
	add(u.Plan.IsSet(), "plan")
	add(u.SQLQuery.IsSet(), "sql_query")
	add(u.SQLResult.IsSet(), "sql_result")
	add(u.FinalAnswer.IsSet(), "final_answer")
	add(u.Explanation.IsSet(), "explanation")
	add(u.Citations.IsSet(), "citations")
	add(u.Errors.IsSet(), "errors")
	add(u.RepairCount.IsSet(), "repair_count")
	return fields
}

// Merge applies u to s by key-wise overwrite and returns the new state.
// s itself is not modified. Slices in the update are copied so later
// changes by the node cannot leak into the state.
func (s SharedState) Merge(u Update) (SharedState, error) {
	next := s

	if v, ok := u.Strategy.Get(); ok {
		if s.Strategy != StrategyUnset && v != s.Strategy {
			return s, fmt.Errorf("%w: %q -> %q", ErrStrategyReassigned, s.Strategy, v)
		}
		next.Strategy = v
	}
	if v, ok := u.RepairCount.Get(); ok {
		if v < s.RepairCount {
			return s, fmt.Errorf("%w: %d -> %d", ErrRepairCountRegressed, s.RepairCount, v)
		}
		next.RepairCount = v
	}
	if v, ok := u.Context.Get(); ok {
		next.Context = cloneSlice(v)
	}
	if v, ok := u.Plan.Get(); ok {
		next.Plan = v
	}
	if v, ok := u.SQLQuery.Get(); ok {
		next.SQLQuery = v
	}
	if v, ok := u.SQLResult.Get(); ok {
		next.SQLResult = v.Clone()
	}
	if v, ok := u.FinalAnswer.Get(); ok {
		next.FinalAnswer = v
	}
	if v, ok := u.Explanation.Get(); ok {
		next.Explanation = v
	}
	if v, ok := u.Citations.Get(); ok {
		next.Citations = cloneSlice(v)
	}
	if v, ok := u.Errors.Get(); ok {
		next.Errors = cloneSlice(v)
	}

	return next, nil
}

// Clone returns a copy whose slices and result rows can be mutated independently.
func (s SharedState) Clone() SharedState {
	next := s
	next.Context = cloneSlice(s.Context)
	next.Citations = cloneSlice(s.Citations)
	next.Errors = cloneSlice(s.Errors)
	next.SQLResult = s.SQLResult.Clone()
	return next
}

// Confidence is 1.0 when the run finished without pending errors, 0.5 otherwise.
func (s SharedState) Confidence() float64 {
	if len(s.Errors) == 0 {
		return 1.0
	}
	return 0.5
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
