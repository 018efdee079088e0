package tests

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/hybridqa/pkg/ports"
)

// BackendProbe describes fixture data the backend under test was seeded with.
type BackendProbe struct {
	Table       string   // a table that must appear in the schema
	Query       string   // a valid query against the fixture
	WantColumns []string // the columns Query returns, in order
	WantRows    int      // the number of rows Query returns
}

// QueryBackendContractTest is a reusable test suite that verifies if an adapter complies with ports.QueryBackend.
func QueryBackendContractTest(t *testing.T, backend ports.QueryBackend, probe BackendProbe) {
	t.Helper()
	ctx := context.Background()

	t.Run("Schema", func(t *testing.T) {
		schema, err := backend.Schema(ctx)
		if err != nil {
			t.Fatalf("unexpected error reading schema: %v", err)
		}
		if !strings.Contains(schema, "Table: "+probe.Table+"\n") {
			t.Errorf("schema does not list table %s:\n%s", probe.Table, schema)
		}
	})

	t.Run("Execute_Success", func(t *testing.T) {
		res := backend.Execute(ctx, probe.Query)
		if res.Failed() {
			t.Fatalf("unexpected query error: %s", res.Error)
		}
		if strings.Join(res.Columns, ",") != strings.Join(probe.WantColumns, ",") {
			t.Errorf("columns mismatch. got %v, want %v", res.Columns, probe.WantColumns)
		}
		if len(res.Rows) != probe.WantRows {
			t.Errorf("expected %d rows, got %d", probe.WantRows, len(res.Rows))
		}
		for i, row := range res.Rows {
			for _, col := range probe.WantColumns {
				if _, ok := row[col]; !ok {
					t.Errorf("row %d missing column %s", i, col)
				}
			}
		}
	})

	t.Run("Execute_Failure", func(t *testing.T) {
		res := backend.Execute(ctx, "SELEC broken FROM nowhere")
		if !res.Failed() {
			t.Fatal("expected an error for invalid query text")
		}
		if len(res.Columns) != 0 || len(res.Rows) != 0 {
			t.Errorf("failed result must be empty, got columns=%v rows=%d", res.Columns, len(res.Rows))
		}
	})

	t.Run("Execute_Empty", func(t *testing.T) {
		res := backend.Execute(ctx, "   ")
		if !res.Failed() {
			t.Error("expected an error for empty query text")
		}
	})
}
