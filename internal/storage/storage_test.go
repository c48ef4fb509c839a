package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestStorage creates a temporary storage for testing.
func newTestStorage(t testing.TB) *Storage {
	t.Helper()

	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	s, err := New(filepath.Join(dir, "db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to create storage: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
		os.RemoveAll(dir)
	})

	return s
}

func TestSetAndGet(t *testing.T) {
	s := newTestStorage(t)

	key := []byte("a:\x00\x00\x00\x01")
	value := []byte("0123456789abcdefaaaa0000")

	if err := s.Set(key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestGetNonExistent(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.Get([]byte("non-existent"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("Get returned %q, want nil", got)
	}
}

// TestHasEmptyValue verifies presence markers stored as empty values are visible.
func TestHasEmptyValue(t *testing.T) {
	s := newTestStorage(t)

	key := []byte("l:\x00\x00\x00\x07")
	if err := s.Set(key, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ok, err := s.Has(key)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !ok {
		t.Error("expected empty value to be present")
	}

	ok, _ = s.Has([]byte("l:\x00\x00\x00\x08"))
	if ok {
		t.Error("expected missing key to be absent")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStorage(t)

	key := []byte("to-delete")

	if err := s.Set(key, []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("Get after Delete returned %q, want nil", got)
	}
}

func TestSetBatch(t *testing.T) {
	s := newTestStorage(t)

	pairs := []KeyValue{
		{Key: []byte("batch-1"), Value: []byte("value-1")},
		{Key: []byte("batch-2"), Value: []byte("value-2")},
		{Key: []byte("batch-3"), Value: []byte("value-3")},
	}

	if err := s.SetBatch(pairs); err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}

	for _, kv := range pairs {
		got, err := s.Get(kv.Key)
		if err != nil {
			t.Fatalf("Get failed for %q: %v", kv.Key, err)
		}

		if !bytes.Equal(got, kv.Value) {
			t.Errorf("Get(%q) = %q, want %q", kv.Key, got, kv.Value)
		}
	}
}

// TestIteratePrefix verifies only keys under the prefix are visited, in order.
func TestIteratePrefix(t *testing.T) {
	s := newTestStorage(t)

	for i := uint32(3); i > 0; i-- {
		key := make([]byte, 6)
		copy(key, "a:")
		binary.BigEndian.PutUint32(key[2:], i)
		_ = s.Set(key, []byte{byte(i)})
	}
	_ = s.Set([]byte("b:other"), []byte("x"))

	var seen []byte
	err := s.IteratePrefix([]byte("a:"), func(key, value []byte) error {
		seen = append(seen, value[0])
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePrefix failed: %v", err)
	}

	if !bytes.Equal(seen, []byte{1, 2, 3}) {
		t.Errorf("visited %v, want [1 2 3]", seen)
	}
}

// TestIteratePrefixStops verifies a callback error aborts iteration.
func TestIteratePrefixStops(t *testing.T) {
	s := newTestStorage(t)

	_ = s.Set([]byte("p:1"), []byte("1"))
	_ = s.Set([]byte("p:2"), []byte("2"))

	stop := errors.New("stop")
	count := 0

	err := s.IteratePrefix([]byte("p:"), func(key, value []byte) error {
		count++
		return stop
	})

	if !errors.Is(err, stop) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if count != 1 {
		t.Errorf("callback ran %d times, want 1", count)
	}
}

// TestBatchReadsOwnWrites verifies pending writes are visible through the batch only.
func TestBatchReadsOwnWrites(t *testing.T) {
	s := newTestStorage(t)

	_ = s.Set([]byte("committed"), []byte("old"))

	b := s.NewBatch()
	defer b.Discard()

	_ = b.Set([]byte("committed"), []byte("new"))
	_ = b.Set([]byte("pending"), []byte("value"))

	got, _ := b.Get([]byte("committed"))
	if !bytes.Equal(got, []byte("new")) {
		t.Errorf("batch read %q, want %q", got, "new")
	}

	got, _ = s.Get([]byte("pending"))
	if got != nil {
		t.Errorf("database read uncommitted value %q", got)
	}
}

// TestBatchCommit verifies committed batches reach the database atomically.
func TestBatchCommit(t *testing.T) {
	s := newTestStorage(t)

	b := s.NewBatch()
	_ = b.Set([]byte("k1"), []byte("v1"))
	_ = b.Set([]byte("k2"), []byte("v2"))
	_ = b.Delete([]byte("k1"))

	if err := b.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if got, _ := s.Get([]byte("k1")); got != nil {
		t.Errorf("k1 should be deleted, got %q", got)
	}
	if got, _ := s.Get([]byte("k2")); !bytes.Equal(got, []byte("v2")) {
		t.Errorf("k2 = %q, want v2", got)
	}

	// Discard after commit is a no-op.
	b.Discard()
}

// TestBatchDiscard verifies discarded batches leave the database untouched.
func TestBatchDiscard(t *testing.T) {
	s := newTestStorage(t)

	b := s.NewBatch()
	_ = b.Set([]byte("dropped"), []byte("v"))
	b.Discard()

	if got, _ := s.Get([]byte("dropped")); got != nil {
		t.Errorf("discarded write visible: %q", got)
	}
}

// TestBatchIteratePrefixMerged verifies batch iteration merges pending and committed keys.
func TestBatchIteratePrefixMerged(t *testing.T) {
	s := newTestStorage(t)

	_ = s.Set([]byte("a:1"), []byte("committed"))

	b := s.NewBatch()
	defer b.Discard()

	_ = b.Set([]byte("a:2"), []byte("pending"))

	count := 0
	_ = b.IteratePrefix([]byte("a:"), func(key, value []byte) error {
		count++
		return nil
	})

	if count != 2 {
		t.Errorf("visited %d keys, want 2", count)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte("a:"), []byte("a;")},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0xFF, 0xFF}, nil},
	}

	for _, tt := range tests {
		got := prefixUpperBound(tt.prefix)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("prefixUpperBound(%x) = %x, want %x", tt.prefix, got, tt.want)
		}
	}
}

// BenchmarkBatchCommit measures committing one command-sized batch (record, owner, counter).
func BenchmarkBatchCommit(b *testing.B) {
	s := newTestStorage(b)

	record := make([]byte, 24)
	owner := make([]byte, 32)
	counter := make([]byte, 4)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		key := make([]byte, 6)
		binary.BigEndian.PutUint32(key[2:], uint32(i))

		batch := s.NewBatch()

		copy(key, "a:")
		_ = batch.Set(append([]byte(nil), key...), record)
		copy(key, "o:")
		_ = batch.Set(append([]byte(nil), key...), owner)
		binary.LittleEndian.PutUint32(counter, uint32(i+1))
		_ = batch.Set([]byte("m:next"), counter)

		if err := batch.Commit(); err != nil {
			b.Fatal(err)
		}
	}
}
