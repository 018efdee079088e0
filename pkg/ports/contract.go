package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAnswerStoreContract runs a suite of tests to verify that an AnswerStore implementation
// adheres to the defined interface contract.
func RunAnswerStoreContract(t *testing.T, store AnswerStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	newRecord := func(id string) *domain.RunRecord {
		return &domain.RunRecord{
			Question: domain.Question{ID: id, Question: "How many orders?", FormatHint: "int"},
			Output: domain.Output{
				ID:          id,
				FinalAnswer: 42,
				SQL:         "SELECT COUNT(*) FROM Orders",
				Confidence:  1.0,
				Explanation: "Counted orders.",
				Citations:   []string{"Orders"},
			},
			Strategy:    domain.StrategySQL,
			Path:        []domain.NodeID{"router", "sql_generator", "executor", "synthesizer"},
			Errors:      []string{},
			CompletedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		record := newRecord(runID)

		err := store.Save(ctx, runID, record)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, record.Question, loaded.Question)
		assert.Equal(t, record.Output.SQL, loaded.Output.SQL)
		assert.Equal(t, record.Output.Citations, loaded.Output.Citations)
		assert.Equal(t, record.Strategy, loaded.Strategy)
		assert.Equal(t, record.Path, loaded.Path)
		assert.True(t, record.CompletedAt.Equal(loaded.CompletedAt))
		// JSON persistence turns numbers into float64, so only check presence.
		assert.NotNil(t, loaded.Output.FinalAnswer)
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		loaded.Output.Citations[0] = "mutated"

		again, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, "Orders", again.Output.Citations[0])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, runID, newRecord(runID))
		require.NoError(t, err)

		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, id1, newRecord(id1))
		_ = store.Save(ctx, id2, newRecord(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
