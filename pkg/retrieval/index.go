package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// DefaultTopK is the number of chunks returned when the caller does not ask for a specific count.
const DefaultTopK = 3

// sparseVector is an L2-normalised term-weight vector with ascending term indices.
type sparseVector struct {
	terms   []int
	weights []float64
}

func (v sparseVector) dot(o sparseVector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(v.terms) && j < len(o.terms) {
		switch {
		case v.terms[i] == o.terms[j]:
			sum += v.weights[i] * o.weights[j]
			i++
			j++
		case v.terms[i] < o.terms[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Index is a TF-IDF index over document chunks.
// It is immutable after Build and safe for concurrent queries.
type Index struct {
	chunks     []domain.Chunk
	vectors    []sparseVector
	vocabulary map[string]int
	idf        []float64
}

// Build chunks the documents in order and fits the term-weighting model over all chunks.
// An empty corpus yields a valid index that never returns results.
func Build(docs []Document) *Index {
	ix := &Index{vocabulary: make(map[string]int)}
	for _, doc := range docs {
		ix.chunks = append(ix.chunks, Chunk(doc)...)
	}

	tokens := make([][]string, len(ix.chunks))
	df := make(map[string]int)
	for i, c := range ix.chunks {
		tokens[i] = Tokenize(c.Content)
		seen := make(map[string]struct{})
		for _, tok := range tokens[i] {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(ix.chunks))
	ix.idf = make([]float64, len(terms))
	for i, term := range terms {
		ix.vocabulary[term] = i
		// Smoothed IDF
		ix.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	ix.vectors = make([]sparseVector, len(ix.chunks))
	for i := range ix.chunks {
		ix.vectors[i] = ix.vectorize(tokens[i])
	}
	return ix
}

// vectorize weights raw term counts by IDF and L2-normalises. Unknown terms are dropped.
func (ix *Index) vectorize(tokens []string) sparseVector {
	counts := make(map[int]int)
	for _, tok := range tokens {
		if idx, ok := ix.vocabulary[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return sparseVector{}
	}

	v := sparseVector{
		terms:   make([]int, 0, len(counts)),
		weights: make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		v.terms = append(v.terms, idx)
	}
	sort.Ints(v.terms)

	norm := 0.0
	for _, idx := range v.terms {
		w := float64(counts[idx]) * ix.idf[idx]
		v.weights = append(v.weights, w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range v.weights {
		v.weights[i] /= norm
	}
	return v
}

// Query ranks chunks by cosine similarity to text and returns at most topK of them,
// highest score first. Chunks scoring zero or less are never returned. Ties go
// to the lower chunk ordinal, then to the earlier document. topK <= 0 means DefaultTopK.
func (ix *Index) Query(text string, topK int) []domain.Chunk {
	if topK <= 0 {
		topK = DefaultTopK
	}
	results := []domain.Chunk{}
	if len(ix.chunks) == 0 {
		return results
	}

	q := ix.vectorize(Tokenize(text))
	if len(q.terms) == 0 {
		return results
	}

	type hit struct {
		pos   int
		score float64
	}
	hits := make([]hit, 0, len(ix.chunks))
	for i, v := range ix.vectors {
		if s := q.dot(v); s > 0 {
			hits = append(hits, hit{pos: i, score: s})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return ix.chunks[hits[a].pos].Index < ix.chunks[hits[b].pos].Index
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	for _, h := range hits {
		results = append(results, ix.chunks[h.pos].WithScore(h.score))
	}
	return results
}

// Retrieve implements ports.Retriever.
func (ix *Index) Retrieve(_ context.Context, text string, topK int) ([]domain.Chunk, error) {
	return ix.Query(text, topK), nil
}

// Chunks returns a copy of the indexed chunks in corpus order.
func (ix *Index) Chunks() []domain.Chunk {
	return append([]domain.Chunk(nil), ix.chunks...)
}

// Len is the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.chunks)
}

// VocabularySize is the number of distinct terms in the fitted model.
func (ix *Index) VocabularySize() int {
	return len(ix.vocabulary)
}
