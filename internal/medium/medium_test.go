package medium

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lernguide/internal/config"
	"lernguide/internal/redis"
	"lernguide/internal/storage"
)

const testCapacity = 1024

func runConformance(t *testing.T, m Medium) {
	t.Helper()
	ctx := context.Background()

	_, found, err := m.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.SetItem(ctx, "k", "v1"))
	got, found, err := m.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", got)

	// overwrite does not count the old value against capacity
	big := strings.Repeat("x", testCapacity-len("k")-64)
	require.NoError(t, m.SetItem(ctx, "k", big))
	require.NoError(t, m.SetItem(ctx, "k", big+"y"))

	err = m.SetItem(ctx, "other", strings.Repeat("z", 128))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	err = m.SetItem(ctx, "k", strings.Repeat("x", 2*testCapacity))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	got, _, err = m.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, big+"y", got, "rejected write must leave prior value")

	require.NoError(t, m.RemoveItem(ctx, "k"))
	_, found, err = m.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, m.RemoveItem(ctx, "k"), "removing a missing key is not an error")

	require.NoError(t, m.SetItem(ctx, "other", strings.Repeat("z", 128)))
}

// runMultibyte checks that capacity is counted in bytes, not characters.
func runMultibyte(t *testing.T, m Medium) {
	t.Helper()
	ctx := context.Background()
	umlauts := strings.Repeat("ä", 400)
	require.NoError(t, m.SetItem(ctx, "k", umlauts))

	err := m.SetItem(ctx, "other", strings.Repeat("z", 300))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	got, found, err := m.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, umlauts, got)
}

func TestMemoryMedium(t *testing.T) {
	m := NewMemory(testCapacity)
	defer m.Close()
	runConformance(t, m)
	assert.Equal(t, len("other")+128, m.Used())
}

func TestMemoryMediumCountsBytes(t *testing.T) {
	m := NewMemory(testCapacity)
	defer m.Close()
	runMultibyte(t, m)
}

func TestClosedMediumIsUnavailable(t *testing.T) {
	ctx := context.Background()

	mem := NewMemory(testCapacity)
	require.NoError(t, mem.Close())
	assert.ErrorIs(t, mem.SetItem(ctx, "k", "v"), ErrUnavailable)
	_, _, err := mem.GetItem(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, mem.RemoveItem(ctx, "k"), ErrUnavailable)

	b, err := NewBadger("", testCapacity)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.SetItem(ctx, "k", "v"), ErrUnavailable)
	_, _, err = b.GetItem(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBadgerMedium(t *testing.T) {
	m, err := NewBadger("", testCapacity)
	require.NoError(t, err)
	defer m.Close()
	runConformance(t, m)
}

func TestBadgerMediumSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m, err := NewBadger(dir, testCapacity)
	require.NoError(t, err)
	require.NoError(t, m.SetItem(ctx, "lern-guide-session", `{"a":1}`))
	require.NoError(t, m.Close())

	m, err = NewBadger(dir, testCapacity)
	require.NoError(t, err)
	defer m.Close()
	got, found, err := m.GetItem(ctx, "lern-guide-session")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, got)
}

func TestSQLiteMedium(t *testing.T) {
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	require.NoError(t, err)
	m, err := NewSQL(db, "sqlite3", testCapacity)
	require.NoError(t, err)
	defer m.Close()
	runConformance(t, m)
	require.NoError(t, m.RemoveItem(context.Background(), "other"))
	runMultibyte(t, m)
}

func TestRebindForPostgres(t *testing.T) {
	s := &SQL{driver: "postgres"}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", s.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	assert.Contains(t, s.usageQuery(), "OCTET_LENGTH(item_value)")
	assert.Contains(t, s.usageQuery(), "item_key <> $1")

	s.driver = "sqlite3"
	assert.Equal(t, "x = ?", s.rebind("x = ?"))
	assert.Contains(t, s.usageQuery(), "LENGTH(CAST(item_value AS BLOB))")
}

func TestOpenFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	m, err := Open(cfg)
	require.NoError(t, err)
	defer m.Close()
	_, ok := m.(*Memory)
	assert.True(t, ok)
}

func TestRedisMedium(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := redis.NewFromAddr(addr)
	require.NoError(t, err)
	prefix := "lernguide-test:" + t.Name() + ":"
	m := NewRedis(client, prefix, testCapacity+len(prefix)*2)
	defer m.Close()
	defer func() {
		_ = client.Del(context.Background(), prefix+"k", prefix+"other")
	}()
	runConformance(t, m)
}
