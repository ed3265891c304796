package reserve

import (
	"math/big"
	"time"
)

// ReserveBalanceAndStaleness returns the last finalized balance for the
// subject together with whether it has exceeded the freshness bound. A subject
// that has never been finalized reports (0, true).
func (e *Engine) ReserveBalanceAndStaleness(subject string) (*big.Int, bool) {
	if e == nil {
		return big.NewInt(0), true
	}
	subject = normalizeSubject(subject)

	e.mu.RLock()
	maxStaleness := e.params.MaxStaleness
	st := e.subjects[subject]
	e.mu.RUnlock()
	if st == nil {
		return big.NewInt(0), true
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.finalized == nil || st.finalized.Balance == nil {
		return big.NewInt(0), true
	}
	stale := e.timestamp().Sub(st.finalized.UpdatedAt) > maxStaleness
	return new(big.Int).Set(st.finalized.Balance), stale
}

// FinalizedReserveFor returns a copy of the subject's finalized record, if any.
func (e *Engine) FinalizedReserveFor(subject string) (*FinalizedReserve, bool) {
	if e == nil {
		return nil, false
	}
	st := e.subjectState(normalizeSubject(subject), false)
	if st == nil {
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.finalized == nil {
		return nil, false
	}
	return st.finalized.Clone(), true
}

// PendingAttestation returns the attester's open claim for the subject. The
// third return value is false when no claim is pending.
func (e *Engine) PendingAttestation(subject string, attester [20]byte) (*big.Int, time.Time, bool) {
	if e == nil {
		return nil, time.Time{}, false
	}
	st := e.subjectState(normalizeSubject(subject), false)
	if st == nil {
		return nil, time.Time{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	att := st.pending[attester]
	if att == nil {
		return nil, time.Time{}, false
	}
	return new(big.Int).Set(att.Balance), att.SubmittedAt, true
}

// PendingAttestationCount returns the number of open claims for the subject,
// expired entries included.
func (e *Engine) PendingAttestationCount(subject string) int {
	if e == nil {
		return 0
	}
	st := e.subjectState(normalizeSubject(subject), false)
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.pending)
}
