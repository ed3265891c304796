package reserve

import (
	"time"

	"reservenet/core/events"
	nativecommon "reservenet/native/common"
)

// livenessRecord tracks one attester's reporting history for a single subject.
// checkpoint trails lastReport and is advanced by full reporting intervals
// during sweeps, so repeated sweeps within the same interval never double
// count a miss.
type livenessRecord struct {
	lastReport time.Time
	checkpoint time.Time
	misses     uint64
	active     bool
}

// touchLiveness records a successful report, resetting the miss counter and
// reactivating the attester. It reports whether the attester had been marked
// inactive and whether this is the attester's first report for the subject.
func (st *subjectState) touchLiveness(addr [20]byte, now time.Time) (reactivated bool) {
	rec := st.liveness[addr]
	if rec == nil {
		rec = &livenessRecord{}
		st.liveness[addr] = rec
		st.roster = append(st.roster, addr)
	} else {
		reactivated = !rec.active
	}
	rec.lastReport = now
	rec.checkpoint = now
	rec.misses = 0
	rec.active = true
	return reactivated
}

// UpdateInactiveAttesters sweeps the subject's reporting history and marks
// attesters inactive once their consecutive miss count reaches the configured
// maximum. Each full reporting interval elapsed since the last report (or the
// last sweep) counts as one miss. Subjects with no history are a no-op.
func (e *Engine) UpdateInactiveAttesters(subject string) error {
	if e == nil {
		return errEngineNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	subject = normalizeSubject(subject)
	if subject == "" {
		return ErrInvalidSubject
	}

	e.mu.RLock()
	frequency := e.params.MinReportingFrequency
	maxMissed := e.params.MaxMissedReports
	st := e.subjects[subject]
	e.mu.RUnlock()
	if st == nil {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := e.timestamp()
	for _, addr := range st.roster {
		rec := st.liveness[addr]
		if rec == nil {
			continue
		}
		elapsed := now.Sub(rec.checkpoint)
		if elapsed <= frequency {
			continue
		}
		intervals := int64(elapsed / frequency)
		rec.misses += uint64(intervals)
		rec.checkpoint = rec.checkpoint.Add(time.Duration(intervals) * frequency)
		if rec.active && rec.misses >= maxMissed {
			rec.active = false
			e.telemetry.ObserveAttesterInactive(subject)
			e.emitter.Emit(events.AttesterMarkedInactive{
				Subject:       subject,
				Attester:      addr,
				MissedReports: rec.misses,
			})
		}
	}
	return nil
}

// AttesterStatusFor reports the liveness view for the attester on the given
// subject. The second return value is false when the attester has never
// reported for the subject.
func (e *Engine) AttesterStatusFor(subject string, attester [20]byte) (AttesterStatus, bool) {
	if e == nil {
		return AttesterStatus{}, false
	}
	subject = normalizeSubject(subject)

	e.mu.RLock()
	st := e.subjects[subject]
	e.mu.RUnlock()
	if st == nil {
		return AttesterStatus{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	rec := st.liveness[attester]
	if rec == nil {
		return AttesterStatus{}, false
	}
	return AttesterStatus{
		Active:        rec.active,
		LastReport:    rec.lastReport,
		MissedReports: rec.misses,
	}, true
}
