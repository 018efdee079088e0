package domain

import "strings"

// Strategy is the processing path chosen for a question.
type Strategy string

const (
	StrategyUnset  Strategy = ""
	StrategyRAG    Strategy = "rag"    // documents only
	StrategySQL    Strategy = "sql"    // structured query only
	StrategyHybrid Strategy = "hybrid" // documents, then structured query
)

// ParseStrategy matches a classification label case-insensitively.
// Anything outside rag/sql/hybrid degrades to StrategyHybrid.
func ParseStrategy(label string) Strategy {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(label))); s {
	case StrategyRAG, StrategySQL, StrategyHybrid:
		return s
	}
	return StrategyHybrid
}

// Valid reports whether s is one of the three concrete strategies.
func (s Strategy) Valid() bool {
	return s == StrategyRAG || s == StrategySQL || s == StrategyHybrid
}
