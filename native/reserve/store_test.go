package reserve

import (
	"math/big"
	"testing"
	"time"

	"reservenet/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(storage.NewMemDB())

	record := &FinalizedReserve{
		Balance:     big.NewInt(123456),
		UpdatedAt:   time.Unix(1_700_000_000, 0).UTC(),
		Participant: 3,
	}
	if err := store.PutFinalized("custodian-1", record); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok, err := store.GetFinalized("custodian-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("record missing")
	}
	if loaded.Balance.Cmp(record.Balance) != 0 {
		t.Fatalf("balance mismatch: %s", loaded.Balance)
	}
	if !loaded.UpdatedAt.Equal(record.UpdatedAt) {
		t.Fatalf("timestamp mismatch: %s", loaded.UpdatedAt)
	}
	if loaded.Participant != 3 {
		t.Fatalf("participant count mismatch: %d", loaded.Participant)
	}

	if _, ok, err := store.GetFinalized("never-seen"); err != nil || ok {
		t.Fatalf("expected miss for unknown subject, ok=%v err=%v", ok, err)
	}
}

func TestStoreLoadFinalizedReturnsAllSubjects(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	subjects := []string{"custodian-1", "custodian-2", "custodian-3"}
	for i, subject := range subjects {
		record := &FinalizedReserve{
			Balance:   big.NewInt(int64(100 * (i + 1))),
			UpdatedAt: time.Unix(1_700_000_000+int64(i), 0).UTC(),
		}
		if err := store.PutFinalized(subject, record); err != nil {
			t.Fatalf("put %s: %v", subject, err)
		}
	}
	// Overwrites must not duplicate index entries.
	if err := store.PutFinalized("custodian-2", &FinalizedReserve{
		Balance:   big.NewInt(999),
		UpdatedAt: time.Unix(1_700_000_100, 0).UTC(),
	}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	records, err := store.LoadFinalized()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != len(subjects) {
		t.Fatalf("expected %d records, got %d", len(subjects), len(records))
	}
	if records["custodian-2"].Balance.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("overwrite not visible: %s", records["custodian-2"].Balance)
	}
}

func TestEngineWritesThroughToStoreAndReloads(t *testing.T) {
	db := storage.NewMemDB()
	store := NewStore(db)

	engine, auth, _, _ := newTestEngine(t, testParams())
	engine.SetState(store)
	a, b, c := testAddr(0x0A), testAddr(0x0B), testAddr(0x0C)
	grantAttesters(auth, a, b, c)

	for _, attester := range [][20]byte{a, b, c} {
		if err := engine.SubmitAttestation(attester, "custodian-1", big.NewInt(100)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	// A fresh engine hydrated from the same database sees the finalized value.
	restarted, _, _, clock := newTestEngine(t, testParams())
	restarted.SetState(NewStore(db))
	if err := restarted.LoadFinalized(); err != nil {
		t.Fatalf("load finalized: %v", err)
	}
	balance, stale := restarted.ReserveBalanceAndStaleness("custodian-1")
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("reloaded balance mismatch: %s", balance)
	}
	if stale {
		t.Fatalf("freshly reloaded record reported stale at %s", clock.Now())
	}
}
