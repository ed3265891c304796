package reserve

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"reservenet/core/events"
)

func TestForceConsensusRequiresArbiterRole(t *testing.T) {
	engine, auth, _, _ := newTestEngine(t, testParams())
	attester := testAddr(0x01)
	grantAttesters(auth, attester)

	if err := engine.SubmitAttestation(attester, "custodian-1", big.NewInt(10)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.ForceConsensus(attester, "custodian-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("attester forced consensus: %v", err)
	}
}

func TestForceConsensusWithSingleAttestation(t *testing.T) {
	engine, auth, recorder, _ := newTestEngine(t, testParams())
	attester, arbiter := testAddr(0x01), testAddr(0xAB)
	grantAttesters(auth, attester)
	auth.grant(RoleArbiter, arbiter)

	if err := engine.SubmitAttestation(attester, "custodian-1", big.NewInt(777)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.ForceConsensus(arbiter, "custodian-1"); err != nil {
		t.Fatalf("force consensus: %v", err)
	}

	forced := recorder.ofType(events.TypeForcedConsensusReached)
	if len(forced) != 1 {
		t.Fatalf("expected one forced event, got %d", len(forced))
	}
	evt := forced[0].(events.ForcedConsensusReached)
	if evt.Balance.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("expected forced value 777, got %s", evt.Balance)
	}
	if len(evt.Participants) != 1 || evt.Participants[0] != attester {
		t.Fatalf("forced event missing participant roster: %+v", evt.Participants)
	}
	if len(evt.Values) != 1 || evt.Values[0].Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("forced event missing raw values: %+v", evt.Values)
	}
	if evt.Caller != arbiter {
		t.Fatalf("forced event caller mismatch")
	}

	balance, stale := engine.ReserveBalanceAndStaleness("custodian-1")
	if balance.Cmp(big.NewInt(777)) != 0 || stale {
		t.Fatalf("forced finalization not recorded: %s stale=%v", balance, stale)
	}
	if count := engine.PendingAttestationCount("custodian-1"); count != 0 {
		t.Fatalf("forced consensus did not purge pending set")
	}
}

func TestForceConsensusFailsWithNothingUsable(t *testing.T) {
	engine, auth, _, clock := newTestEngine(t, testParams())
	attester, arbiter := testAddr(0x01), testAddr(0xAB)
	grantAttesters(auth, attester)
	auth.grant(RoleArbiter, arbiter)

	if err := engine.ForceConsensus(arbiter, "never-seen"); !errors.Is(err, ErrNoValidAttestations) {
		t.Fatalf("expected no valid attestations for unknown subject, got %v", err)
	}

	if err := engine.SubmitAttestation(attester, "custodian-1", big.NewInt(10)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	clock.Advance(7 * time.Hour)
	if err := engine.ForceConsensus(arbiter, "custodian-1"); !errors.Is(err, ErrNoValidAttestations) {
		t.Fatalf("expected no valid attestations once expired, got %v", err)
	}
}

func TestForceConsensusUsesMedianOfValidSet(t *testing.T) {
	engine, auth, _, _ := newTestEngine(t, testParams())
	arbiter := testAddr(0xAB)
	auth.grant(RoleArbiter, arbiter)
	a, b := testAddr(0x0A), testAddr(0x0B)
	grantAttesters(auth, a, b)

	if err := engine.SubmitAttestation(a, "custodian-1", big.NewInt(100)); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if err := engine.SubmitAttestation(b, "custodian-1", big.NewInt(105)); err != nil {
		t.Fatalf("submit b: %v", err)
	}
	if err := engine.ForceConsensus(arbiter, "custodian-1"); err != nil {
		t.Fatalf("force consensus: %v", err)
	}

	balance, _ := engine.ReserveBalanceAndStaleness("custodian-1")
	if balance.Cmp(big.NewInt(102)) != 0 {
		t.Fatalf("expected floor average 102, got %s", balance)
	}
}

func TestEmergencySetReserve(t *testing.T) {
	engine, auth, recorder, _ := newTestEngine(t, testParams())
	attester, arbiter := testAddr(0x01), testAddr(0xAB)
	grantAttesters(auth, attester)
	auth.grant(RoleArbiter, arbiter)

	if err := engine.SubmitAttestation(attester, "custodian-1", big.NewInt(10)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.EmergencySetReserve(arbiter, "custodian-1", big.NewInt(42)); err != nil {
		t.Fatalf("emergency set: %v", err)
	}

	balance, stale := engine.ReserveBalanceAndStaleness("custodian-1")
	if balance.Cmp(big.NewInt(42)) != 0 || stale {
		t.Fatalf("emergency set not recorded: %s stale=%v", balance, stale)
	}
	if count := engine.PendingAttestationCount("custodian-1"); count != 0 {
		t.Fatalf("emergency set did not purge pending state")
	}

	updated := recorder.ofType(events.TypeReserveBalanceUpdated)
	if len(updated) != 1 {
		t.Fatalf("expected one update event, got %d", len(updated))
	}
	evt := updated[0].(events.ReserveBalanceUpdated)
	if evt.OldBalance.Sign() != 0 || evt.NewBalance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("update event balances wrong: old=%s new=%s", evt.OldBalance, evt.NewBalance)
	}

	// A second override records the previous value as old.
	if err := engine.EmergencySetReserve(arbiter, "custodian-1", big.NewInt(84)); err != nil {
		t.Fatalf("second emergency set: %v", err)
	}
	updated = recorder.ofType(events.TypeReserveBalanceUpdated)
	evt = updated[1].(events.ReserveBalanceUpdated)
	if evt.OldBalance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected old balance 42, got %s", evt.OldBalance)
	}
}

func TestEmergencySetReserveRejectsOverflow(t *testing.T) {
	engine, auth, _, _ := newTestEngine(t, testParams())
	arbiter := testAddr(0xAB)
	auth.grant(RoleArbiter, arbiter)

	err := engine.EmergencySetReserve(arbiter, "custodian-1", new(big.Int).Lsh(big.NewInt(1), 129))
	if !errors.Is(err, ErrBalanceOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
}

func TestResetConsensusClearsPendingOnly(t *testing.T) {
	engine, auth, _, _ := newTestEngine(t, testParams())
	arbiter := testAddr(0xAB)
	auth.grant(RoleArbiter, arbiter)
	a, b, c := testAddr(0x0A), testAddr(0x0B), testAddr(0x0C)
	grantAttesters(auth, a, b, c)

	for _, attester := range [][20]byte{a, b, c} {
		if err := engine.SubmitAttestation(attester, "custodian-1", big.NewInt(100)); err != nil {
			t.Fatalf("round one submit: %v", err)
		}
	}
	if err := engine.SubmitAttestation(a, "custodian-1", big.NewInt(999)); err != nil {
		t.Fatalf("round two submit: %v", err)
	}

	if err := engine.ResetConsensus(arbiter, "custodian-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if count := engine.PendingAttestationCount("custodian-1"); count != 0 {
		t.Fatalf("reset did not purge pending claims")
	}
	balance, _ := engine.ReserveBalanceAndStaleness("custodian-1")
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("reset touched finalized balance: %s", balance)
	}
}

func TestResetConsensusSucceedsWithNoPendingState(t *testing.T) {
	engine, auth, _, _ := newTestEngine(t, testParams())
	arbiter := testAddr(0xAB)
	auth.grant(RoleArbiter, arbiter)

	if err := engine.ResetConsensus(arbiter, "never-seen"); err != nil {
		t.Fatalf("reset on empty subject: %v", err)
	}
}

func TestArbitrationRolesAreDistinct(t *testing.T) {
	engine, auth, _, _ := newTestEngine(t, testParams())
	manager := testAddr(0xCD)
	auth.grant(RoleManager, manager)

	if err := engine.ForceConsensus(manager, "custodian-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("manager forced consensus: %v", err)
	}
	if err := engine.EmergencySetReserve(manager, "custodian-1", big.NewInt(1)); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("manager emergency set: %v", err)
	}
	if err := engine.ResetConsensus(manager, "custodian-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("manager reset: %v", err)
	}
}
