package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/hybridqa/pkg/adapters/redis"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunAnswerStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_New(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := redis.New("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "q1", &domain.RunRecord{Question: domain.Question{ID: "q1"}}))
	assert.True(t, mr.Exists(redis.DefaultPrefix+"q1"))

	_, err = redis.New("not a url")
	assert.Error(t, err)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	now := time.Now()
	store := redis.NewFromClient(client,
		redis.WithTTL(time.Second),
		redis.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-ttl", &domain.RunRecord{Question: domain.Question{ID: "run-ttl"}}))

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, runs, "run-ttl")

	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "run-ttl")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	now = now.Add(2 * time.Second)
	runs, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "q7", &domain.RunRecord{Question: domain.Question{ID: "q7"}}))
	assert.True(t, mr.Exists("custom:app:q7"))
	assert.True(t, mr.Exists("custom:app:index"))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"q7"}, list)
}

func TestRedisStore_RoundTripKeepsErrors(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	record := &domain.RunRecord{
		Question:    domain.Question{ID: "q2", Question: "AOV?", FormatHint: "float"},
		Output:      domain.Output{ID: "q2", FinalAnswer: 12.5, Confidence: 0.5, Citations: []string{}},
		Strategy:    domain.StrategyHybrid,
		Errors:      []string{"no such column: Revenue"},
		RepairCount: 2,
	}
	require.NoError(t, store.Save(ctx, "q2", record))

	loaded, err := store.Load(ctx, "q2")
	require.NoError(t, err)
	assert.Equal(t, record.Errors, loaded.Errors)
	assert.Equal(t, 2, loaded.RepairCount)
	assert.Equal(t, 12.5, loaded.Output.FinalAnswer)
	assert.Equal(t, 0.5, loaded.Output.Confidence)
}
