package memory

import (
	"sort"

	"github.com/aretw0/hybridqa/pkg/retrieval"
)

// Loader serves a document corpus held in memory.
// It stands in for a docs directory in tests and embedded setups.
type Loader struct {
	docs map[string]string
}

// NewLoader creates a loader from document name to body.
func NewLoader(data map[string]string) *Loader {
	docs := make(map[string]string, len(data))
	for k, v := range data {
		docs[k] = v
	}
	return &Loader{docs: docs}
}

// Documents returns the corpus ordered by name, matching directory loading order.
func (l *Loader) Documents() []retrieval.Document {
	names := make([]string, 0, len(l.docs))
	for k := range l.docs {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]retrieval.Document, len(names))
	for i, name := range names {
		out[i] = retrieval.Document{Name: name, Body: l.docs[name]}
	}
	return out
}

// Index builds a retrieval index over the corpus.
func (l *Loader) Index() *retrieval.Index {
	return retrieval.Build(l.Documents())
}
