// Package retrieval implements the lexical retrieval index: paragraph chunking,
// TF-IDF weighting with English stop words removed, and cosine-similarity ranking.
package retrieval
