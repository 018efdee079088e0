package retrieval

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// DefaultExtensions are the document types LoadDir reads.
var DefaultExtensions = []string{".md", ".txt", ".pdf"}

// LoadDir reads every supported document in dir (non-recursive) in file-name order.
// Markdown documents are named by their file name without ".md"; other types
// keep the full file name so that policy.md and policy.txt stay distinct.
// Two files resolving to the same document name are an error.
func LoadDir(dir string, extensions ...string) ([]Document, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !allowed[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		docName := DocumentName(name)
		if prev, ok := seen[docName]; ok {
			return nil, fmt.Errorf("documents %s and %s share the name %q", prev, name, docName)
		}
		seen[docName] = name

		path := filepath.Join(dir, name)
		body, err := readDocument(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load document %s: %w", name, err)
		}
		docs = append(docs, Document{Name: docName, Body: body})
	}
	return docs, nil
}

// DocumentName is the name chunks of the file are cited under.
func DocumentName(file string) string {
	if ext := filepath.Ext(file); strings.EqualFold(ext, ".md") {
		return strings.TrimSuffix(file, ext)
	}
	return file
}

// BuildFromDir loads dir and builds an index over it.
func BuildFromDir(dir string, extensions ...string) (*Index, error) {
	docs, err := LoadDir(dir, extensions...)
	if err != nil {
		return nil, err
	}
	return Build(docs), nil
}

func readDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// extractPDF returns the plain text of a PDF. Page text is not separated by
// blank lines, so a PDF usually indexes as few large chunks.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}
