package ledger

import (
	"os"
	"testing"

	"Pedigree/internal/storage"
)

// newTestStorage creates a temporary storage for testing.
func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()

	dir, err := os.MkdirTemp("", "ledger_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	t.Cleanup(func() {
		os.RemoveAll(dir)
	})

	db, err := storage.New(dir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestNextIDDefaultsToZero(t *testing.T) {
	store := NewStore(newTestStorage(t))

	id, err := store.NextID()
	if err != nil {
		t.Fatal(err)
	}

	if id != 0 {
		t.Errorf("expected 0, got %d", id)
	}

	if err := store.SetNextID(41); err != nil {
		t.Fatal(err)
	}

	if id, _ := store.NextID(); id != 41 {
		t.Errorf("expected 41, got %d", id)
	}
}

// TestAssetSetGet verifies a record round-trips through the current layout.
func TestAssetSetGet(t *testing.T) {
	store := NewStore(newTestStorage(t))

	label, _ := ParseLabel("aaaa0000")
	asset := Asset{DNA: DNA{0x01, 0x02}, Label: label}

	if err := store.PutAsset(3, asset); err != nil {
		t.Fatal(err)
	}

	got, found, err := store.Asset(3)
	if err != nil || !found {
		t.Fatalf("expected asset, found=%v err=%v", found, err)
	}

	if got != asset {
		t.Errorf("expected %+v, got %+v", asset, got)
	}

	if _, found, _ := store.Asset(4); found {
		t.Error("expected id 4 to be absent")
	}
}

// TestAssetRejectsLegacyLayout verifies the current decoder never accepts old records.
func TestAssetRejectsLegacyLayout(t *testing.T) {
	store := NewStore(newTestStorage(t))

	if err := store.PutRawAsset(0, make([]byte, DNASize)); err != nil {
		t.Fatal(err)
	}

	if _, _, err := store.Asset(0); err == nil {
		t.Error("expected decode error for 16-byte legacy record")
	}
}

func TestOwner(t *testing.T) {
	store := NewStore(newTestStorage(t))

	alice := AccountID{1}
	bob := AccountID{2}

	_ = store.PutOwner(0, alice)
	_ = store.PutOwner(0, bob)

	owner, found, err := store.Owner(0)
	if err != nil || !found {
		t.Fatalf("expected owner, found=%v err=%v", found, err)
	}

	if owner != bob {
		t.Errorf("expected overwritten owner %s, got %s", bob, owner)
	}
}

// TestParentsOrderPreserved verifies parents come back in call order.
func TestParentsOrderPreserved(t *testing.T) {
	store := NewStore(newTestStorage(t))

	_ = store.PutParents(2, Parents{A: 1, B: 0})

	p, found, err := store.Parents(2)
	if err != nil || !found {
		t.Fatalf("expected parents, found=%v err=%v", found, err)
	}

	if p != (Parents{A: 1, B: 0}) {
		t.Errorf("unexpected parents %+v", p)
	}

	if _, found, _ := store.Parents(0); found {
		t.Error("created assets have no parents")
	}
}

func TestListingToggle(t *testing.T) {
	store := NewStore(newTestStorage(t))

	if listed, _ := store.IsListed(5); listed {
		t.Fatal("expected not listed")
	}

	_ = store.SetListed(5)

	if listed, _ := store.IsListed(5); !listed {
		t.Fatal("expected listed")
	}

	var ids []AssetID
	_ = store.Listings(func(id AssetID) error {
		ids = append(ids, id)
		return nil
	})
	if len(ids) != 1 || ids[0] != 5 {
		t.Errorf("unexpected listings %v", ids)
	}

	_ = store.ClearListing(5)

	if listed, _ := store.IsListed(5); listed {
		t.Error("expected listing cleared")
	}
}

func TestSchemaVersion(t *testing.T) {
	store := NewStore(newTestStorage(t))

	if v, _ := store.SchemaVersion(); v != 0 {
		t.Errorf("expected default version 0, got %d", v)
	}

	_ = store.SetSchemaVersion(2)

	if v, _ := store.SchemaVersion(); v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
}

// TestAssetsIterateInIDOrder verifies big-endian keys give id order past one byte.
func TestAssetsIterateInIDOrder(t *testing.T) {
	store := NewStore(newTestStorage(t))

	for _, id := range []AssetID{300, 2, 256} {
		_ = store.PutAsset(id, Asset{})
	}

	var ids []AssetID
	err := store.Assets(func(id AssetID, _ Asset) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []AssetID{2, 256, 300}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("expected %v, got %v", want, ids)
		}
	}
}

// TestStoreOverBatch verifies the store works against an uncommitted batch.
func TestStoreOverBatch(t *testing.T) {
	db := newTestStorage(t)

	batch := db.NewBatch()
	store := NewStore(batch)

	_ = store.PutOwner(0, AccountID{9})
	_ = store.SetNextID(1)

	if _, found, _ := store.Owner(0); !found {
		t.Error("batch store should read its own writes")
	}

	batch.Discard()

	if _, found, _ := NewStore(db).Owner(0); found {
		t.Error("discarded batch leaked into database")
	}
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("ab")
	if err != nil {
		t.Fatal(err)
	}

	if l.String() != "ab" {
		t.Errorf("expected trimmed label ab, got %q", l.String())
	}

	if _, err := ParseLabel("123456789"); err == nil {
		t.Error("expected error for 9-byte label")
	}
}

func TestParseAccountID(t *testing.T) {
	a := AccountID{0xAB, 0xCD}

	got, err := ParseAccountID(a.String())
	if err != nil {
		t.Fatal(err)
	}

	if got != a {
		t.Errorf("expected %s, got %s", a, got)
	}

	if _, err := ParseAccountID("abcd"); err == nil {
		t.Error("expected length error")
	}
}
