package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"Pedigree/internal/storage"
)

// createTestStorage creates a temporary storage for testing.
func createTestStorage(t *testing.T) *storage.Storage {
	t.Helper()

	dir, err := os.MkdirTemp("", "snapshot_test_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	db, err := storage.New(filepath.Join(dir, "db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("create storage: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		os.RemoveAll(dir)
	})

	return db
}

func fill(t *testing.T, db *storage.Storage) {
	t.Helper()

	pairs := []storage.KeyValue{
		{Key: []byte("m:next"), Value: []byte{3, 0, 0, 0}},
		{Key: []byte("a:\x00\x00\x00\x00"), Value: bytes.Repeat([]byte{7}, 24)},
		{Key: []byte("l:\x00\x00\x00\x00"), Value: []byte{}},
	}

	if err := db.SetBatch(pairs); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}
}

func TestCreateEmpty(t *testing.T) {
	db := createTestStorage(t)

	data, err := Create(db, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	s, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if s.Version != formatVersion || s.Height != 0 || s.Entries != 0 {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestCreateDeterministic(t *testing.T) {
	db := createTestStorage(t)
	fill(t, db)

	a, err := Create(db, 9)
	if err != nil {
		t.Fatal(err)
	}

	b, _ := Create(db, 9)
	if !bytes.Equal(a, b) {
		t.Error("same state should export identically")
	}
}

// TestApplyRoundTrip verifies every entry, empty values included, survives.
func TestApplyRoundTrip(t *testing.T) {
	src := createTestStorage(t)
	fill(t, src)

	data, err := Create(src, 12)
	if err != nil {
		t.Fatal(err)
	}

	dst := createTestStorage(t)

	s, err := Apply(dst, data)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if s.Height != 12 || s.Entries != 3 {
		t.Errorf("unexpected snapshot %+v", s)
	}

	value, err := dst.Get([]byte("m:next"))
	if err != nil || !bytes.Equal(value, []byte{3, 0, 0, 0}) {
		t.Errorf("m:next = %x, %v", value, err)
	}

	if has, _ := dst.Has([]byte("l:\x00\x00\x00\x00")); !has {
		t.Error("empty-valued listing key lost")
	}
}

func TestApplyRejectsNonEmpty(t *testing.T) {
	db := createTestStorage(t)
	fill(t, db)

	data, _ := Create(db, 1)

	if _, err := Apply(db, data); !errors.Is(err, ErrNotEmpty) {
		t.Errorf("expected ErrNotEmpty, got %v", err)
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	db := createTestStorage(t)
	fill(t, db)

	data, _ := Create(db, 1)

	// Flip one byte of the asset record value.
	corrupt := append([]byte(nil), data...)
	idx := bytes.Index(corrupt, bytes.Repeat([]byte{7}, 24))
	corrupt[idx] ^= 0xFF

	if _, err := Decode(corrupt); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}

	if _, err := Decode(data[:len(data)-5]); err == nil {
		t.Error("expected error on truncated snapshot")
	}
}

func TestCompressDecompress(t *testing.T) {
	original := bytes.Repeat([]byte("pedigree"), 1000)

	compressed, err := Compress(original)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	if len(compressed) >= len(original) {
		t.Errorf("compressed size %d not smaller than %d", len(compressed), len(original))
	}

	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}

	if !bytes.Equal(decompressed, original) {
		t.Error("decompressed data mismatch")
	}
}

func TestWriteReadFile(t *testing.T) {
	db := createTestStorage(t)
	fill(t, db)

	path := filepath.Join(t.TempDir(), "backup.snap")
	if err := WriteFile(path, db, 4); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	s, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if s.Height != 4 || s.Entries != 3 {
		t.Errorf("unexpected snapshot %+v", s)
	}
}
