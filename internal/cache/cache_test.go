package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeClient is an in-memory stand-in for the redis client.
type fakeClient struct {
	data    map[string]string
	getErr  error
	setErr  error
	pingErr error
	sets    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}}
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("slave_labor", "12345678901")
	b := Fingerprint("slave_labor", "12345678901")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "agrocheck:result:slave_labor:")
}

func TestFingerprint_VariesByCheckerAndValue(t *testing.T) {
	assert.NotEqual(t,
		Fingerprint("slave_labor", "12345678901"),
		Fingerprint("ibama_embargoes", "12345678901"),
	)
	assert.NotEqual(t,
		Fingerprint("slave_labor", "12345678901"),
		Fingerprint("slave_labor", "12345678902"),
	)
}

func TestResultCache_RoundTrip(t *testing.T) {
	client := newFakeClient()
	c := NewResultCache(client, true)

	stored := &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: model.SeverityCritical,
		Message:  "document present in the registry",
	}
	c.Set(context.Background(), "slave_labor", "12345678901", stored, time.Hour)

	got, ok := c.Get(context.Background(), "slave_labor", "12345678901")
	require.True(t, ok)
	assert.Equal(t, model.StatusFail, got.Status)
	assert.Equal(t, model.SeverityCritical, got.Severity)
}

func TestResultCache_MissOnUnknownKey(t *testing.T) {
	c := NewResultCache(newFakeClient(), true)

	_, ok := c.Get(context.Background(), "slave_labor", "never-stored")
	assert.False(t, ok)
}

func TestResultCache_ErrorsDemoteToMiss(t *testing.T) {
	client := newFakeClient()
	client.getErr = assert.AnError
	c := NewResultCache(client, true)

	_, ok := c.Get(context.Background(), "slave_labor", "12345678901")
	assert.False(t, ok)
}

func TestResultCache_CorruptEntryIsMiss(t *testing.T) {
	client := newFakeClient()
	client.data[Fingerprint("slave_labor", "x")] = "{not json"
	c := NewResultCache(client, true)

	_, ok := c.Get(context.Background(), "slave_labor", "x")
	assert.False(t, ok)
}

func TestResultCache_DisabledNeverTouchesClient(t *testing.T) {
	client := newFakeClient()
	c := NewResultCache(client, false)

	c.Set(context.Background(), "slave_labor", "x", &model.CheckerResult{Status: model.StatusPass}, time.Hour)
	_, ok := c.Get(context.Background(), "slave_labor", "x")

	assert.False(t, ok)
	assert.Zero(t, client.sets)
}

func TestResultCache_NilClientDisables(t *testing.T) {
	c := NewResultCache(nil, true)

	_, ok := c.Get(context.Background(), "slave_labor", "x")
	assert.False(t, ok)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestResultCache_ZeroTTLNotStored(t *testing.T) {
	client := newFakeClient()
	c := NewResultCache(client, true)

	c.Set(context.Background(), "slave_labor", "x", &model.CheckerResult{Status: model.StatusPass}, 0)
	assert.Zero(t, client.sets)
}
