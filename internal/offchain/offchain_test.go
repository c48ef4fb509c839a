package offchain

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"Pedigree/internal/ledger"
)

func TestNoteKeyLayout(t *testing.T) {
	key := NoteKey(0x0102)

	want := append([]byte("ocw-kitties::storage::tx/"), 0x02, 0x01, 0x00, 0x00)
	require.Equal(t, want, key)
	require.NotEqual(t, NoteKey(1), NoteKey(2))
}

func TestIndexingNoteRoundTrip(t *testing.T) {
	label, _ := ledger.ParseLabel("tom")
	note := IndexingNote{Op: OpSubmitName, Label: label}

	got, err := DecodeIndexingNote(note.Encode())
	require.NoError(t, err)
	require.Equal(t, note, got)

	_, err = DecodeIndexingNote([]byte{1, 2})
	require.Error(t, err)
}

// testStore runs the shared Store contract against an implementation.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	key := NoteKey(7)

	_, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set(ctx, key, []byte("first")))
	require.NoError(t, s.Set(ctx, key, []byte("second")))

	value, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("second"), value)
}

func TestPebbleStore(t *testing.T) {
	s, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisStore(t *testing.T) {
	client := getRedisClient(t)
	client.Del(context.Background(), string(NoteKey(7)))

	s := NewRedisStore(client)
	defer s.Close()

	testStore(t, s)
}
