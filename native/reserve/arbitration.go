package reserve

import (
	"math/big"

	"reservenet/core/events"
	nativecommon "reservenet/native/common"
)

// ForceConsensus finalizes the subject using whatever valid claims exist,
// regardless of the quorum threshold. It fails when no claim is usable. The
// emitted event records the full roster of contributing attesters and their
// raw values so the override is auditable, unlike normal consensus events.
func (e *Engine) ForceConsensus(caller [20]byte, subject string) error {
	if e == nil {
		return errEngineNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.hasRole(RoleArbiter, caller) {
		return ErrPermissionDenied
	}
	subject = normalizeSubject(subject)
	if subject == "" {
		return ErrInvalidSubject
	}

	timeout := e.CurrentParams().AttestationTimeout
	st := e.subjectState(subject, false)
	if st == nil {
		return ErrNoValidAttestations
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := e.timestamp()
	valid := e.validSetLocked(st, now, timeout)
	if len(valid) == 0 {
		return ErrNoValidAttestations
	}

	participants := make([][20]byte, len(valid))
	values := make([]*big.Int, len(valid))
	for i, att := range valid {
		participants[i] = att.Attester
		values[i] = new(big.Int).Set(att.Balance)
	}
	value := median(values)

	if err := e.finalizeLocked(st, subject, value, now, len(valid)); err != nil {
		return err
	}
	e.telemetry.ObserveForcedConsensus(subject)
	e.emitter.Emit(events.ForcedConsensusReached{
		Subject:      subject,
		Balance:      value,
		Caller:       caller,
		Participants: participants,
		Values:       values,
		Timestamp:    now.Unix(),
	})
	return nil
}

// EmergencySetReserve overwrites the subject's finalized balance directly,
// bypassing attestation entirely, and purges any pending claims. The override
// counts as a real finalization with a real timestamp for staleness purposes.
func (e *Engine) EmergencySetReserve(caller [20]byte, subject string, balance *big.Int) error {
	if e == nil {
		return errEngineNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.hasRole(RoleArbiter, caller) {
		return ErrPermissionDenied
	}
	subject = normalizeSubject(subject)
	if subject == "" {
		return ErrInvalidSubject
	}
	if err := validateBalance(balance); err != nil {
		return err
	}

	st := e.subjectState(subject, true)

	st.mu.Lock()
	defer st.mu.Unlock()

	old := big.NewInt(0)
	if st.finalized != nil && st.finalized.Balance != nil {
		old = new(big.Int).Set(st.finalized.Balance)
	}

	now := e.timestamp()
	if err := e.finalizeLocked(st, subject, balance, now, 0); err != nil {
		return err
	}
	e.telemetry.ObserveEmergencyOverride(subject)
	e.emitter.Emit(events.ReserveBalanceUpdated{
		Subject:    subject,
		OldBalance: old,
		NewBalance: new(big.Int).Set(balance),
		Caller:     caller,
		Timestamp:  now.Unix(),
	})
	return nil
}

// ResetConsensus purges the subject's pending claims without touching the
// finalized balance, clearing a stuck or poisoned round. It succeeds even when
// nothing is pending.
func (e *Engine) ResetConsensus(caller [20]byte, subject string) error {
	if e == nil {
		return errEngineNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.hasRole(RoleArbiter, caller) {
		return ErrPermissionDenied
	}
	subject = normalizeSubject(subject)
	if subject == "" {
		return ErrInvalidSubject
	}

	st := e.subjectState(subject, false)
	if st == nil {
		return nil
	}

	st.mu.Lock()
	st.pending = make(map[[20]byte]*Attestation)
	st.mu.Unlock()
	return nil
}
