package reasoning

import (
	"fmt"
	"strings"
)

type field struct {
	Name string
	Desc string
}

// signature describes one capability: an instruction, named inputs and the
// JSON keys the model is asked to produce.
type signature struct {
	Instruction string
	Inputs      []field
	Outputs     []field
}

var (
	routerSig = signature{
		Instruction: "Classify the user query to determine the best strategy: 'rag', 'sql', or 'hybrid'.",
		Inputs:      []field{{"question", "The user's question about retail analytics."}},
		Outputs: []field{{"strategy", "The best strategy: 'rag' (policy/marketing docs), 'sql' (database queries), " +
			"or 'hybrid' (requires both docs and db)."}},
	}

	plannerSig = signature{
		Instruction: "Extract constraints and entities from the question to plan the SQL query.",
		Inputs: []field{
			{"question", "The user's question."},
			{"context", "Relevant context from retrieved documents."},
		},
		Outputs: []field{
			{"date_range", "Date range mentioned or implied (e.g., '1997-06-01 to 1997-06-30'), or 'None'."},
			{"entities", "List of relevant entities (categories, products, customers) to filter by."},
			{"kpi_formula", "Relevant KPI formula or definition from context, if any."},
		},
	}

	generatorSig = signature{
		Instruction: "Generate a SQLite query based on the question, schema, and plan.",
		Inputs: []field{
			{"question", "The user's question."},
			{"db_schema", "The database schema (tables and columns)."},
			{"plan", "Constraints and entities extracted from the question/docs."},
		},
		Outputs: []field{{"sql_query", "The SQLite query to answer the question. Must be valid SQLite."}},
	}

	synthesizerSig = signature{
		Instruction: "Synthesize the final answer based on the question, SQL results, and retrieved context.",
		Inputs: []field{
			{"question", "The user's question."},
			{"sql_query", "The executed SQL query, if any."},
			{"sql_result", "The result of the SQL query (columns and rows)."},
			{"context", "Retrieved context from documents."},
			{"format_hint", "The expected format of the answer (e.g., 'int', 'float', '{category:str, quantity:int}')."},
		},
		Outputs: []field{
			{"final_answer", "The final answer matching the format_hint."},
			{"explanation", "A brief explanation (<= 2 sentences)."},
			{"citations", "List of DB tables used and doc chunk IDs referenced."},
		},
	}
)

// System renders the system message.
func (s signature) System() string {
	var b strings.Builder
	b.WriteString(s.Instruction)
	b.WriteString("\n\nInputs:\n")
	for _, f := range s.Inputs {
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Desc)
	}
	b.WriteString("\nRespond with a single JSON object with these keys and nothing else:\n")
	for _, f := range s.Outputs {
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Desc)
	}
	return b.String()
}

// User renders the input values in declaration order. Missing values render as "None".
func (s signature) User(values map[string]string) string {
	var b strings.Builder
	for i, f := range s.Inputs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		v := strings.TrimSpace(values[f.Name])
		if v == "" {
			v = "None"
		}
		fmt.Fprintf(&b, "%s:\n%s", f.Name, v)
	}
	return b.String()
}

// OutputKeys lists the JSON keys the capability produces.
func (s signature) OutputKeys() []string {
	keys := make([]string, len(s.Outputs))
	for i, f := range s.Outputs {
		keys[i] = f.Name
	}
	return keys
}
