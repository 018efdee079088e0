// Package tui renders answers for terminals.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown with glamour,
// detecting a light or dark background.
func NewRenderer() (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return r.Render, nil
}

// FormatRecord describes a finished run as markdown.
func FormatRecord(rec *domain.RunRecord) string {
	var sb strings.Builder
	out := rec.Output

	fmt.Fprintf(&sb, "## %s\n\n", rec.Question.Question)
	fmt.Fprintf(&sb, "**Answer:** `%s`\n\n", answerText(out.FinalAnswer))
	if out.Explanation != "" {
		fmt.Fprintf(&sb, "%s\n\n", out.Explanation)
	}
	if out.SQL != "" {
		fmt.Fprintf(&sb, "```sql\n%s\n```\n\n", out.SQL)
	}
	fmt.Fprintf(&sb, "| strategy | confidence | repairs |\n|---|---|---|\n| %s | %.1f | %d |\n\n",
		rec.Strategy, out.Confidence, rec.RepairCount)

	if len(out.Citations) > 0 {
		sb.WriteString("**Citations**\n\n")
		for _, c := range out.Citations {
			fmt.Fprintf(&sb, "- `%s`\n", c)
		}
		sb.WriteString("\n")
	}
	if len(rec.Errors) > 0 {
		sb.WriteString("**Unresolved errors**\n\n")
		for _, e := range rec.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	return sb.String()
}

func answerText(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
