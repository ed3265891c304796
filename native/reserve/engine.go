package reserve

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"reservenet/core/events"
	nativecommon "reservenet/native/common"
	"reservenet/observability/metrics"
)

var errEngineNotConfigured = errors.New("reserve: engine not configured")

// FinalizedStore persists finalized reserve records across restarts. Pending
// claims and liveness history are round-local and deliberately not persisted;
// a restart clears any open round.
type FinalizedStore interface {
	PutFinalized(subject string, record *FinalizedReserve) error
	LoadFinalized() (map[string]*FinalizedReserve, error)
}

// subjectState holds everything the engine tracks for a single subject. Each
// subject is a single-writer domain: all mutations happen under st.mu, so
// independent subjects never contend.
type subjectState struct {
	mu        sync.Mutex
	pending   map[[20]byte]*Attestation
	roster    [][20]byte
	liveness  map[[20]byte]*livenessRecord
	finalized *FinalizedReserve
}

func newSubjectState() *subjectState {
	return &subjectState{
		pending:  make(map[[20]byte]*Attestation),
		liveness: make(map[[20]byte]*livenessRecord),
	}
}

// Engine accumulates per-subject balance claims from permissioned attesters
// and converges on a single trusted value via median aggregation once enough
// independent, timely, active claims exist.
type Engine struct {
	mu       sync.RWMutex
	params   Params
	registry *attesterRegistry
	subjects map[string]*subjectState

	auth      Authorizer
	pauses    nativecommon.PauseView
	emitter   events.Emitter
	store     FinalizedStore
	now       func() time.Time
	telemetry *metrics.ReserveMetrics
}

// NewEngine constructs a consensus engine with the supplied parameters.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:    params,
		registry:  newAttesterRegistry(),
		subjects:  make(map[string]*subjectState),
		emitter:   events.NoopEmitter{},
		now:       time.Now,
		telemetry: metrics.Reserve(),
	}, nil
}

// SetAuthorizer wires the role oracle consulted before every mutation. With no
// authorizer configured every permissioned call fails closed.
func (e *Engine) SetAuthorizer(auth Authorizer) {
	if e == nil {
		return
	}
	e.auth = auth
}

// SetEmitter configures the event emitter used to broadcast engine activity.
// Passing nil resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetClock overrides the engine clock, primarily for deterministic testing.
func (e *Engine) SetClock(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.now = now
}

// SetState wires the engine to the finalized-reserve persistence layer.
func (e *Engine) SetState(store FinalizedStore) {
	if e == nil {
		return
	}
	e.store = store
}

// LoadFinalized hydrates the in-memory finalized records from the configured
// store. Call once at startup before serving traffic.
func (e *Engine) LoadFinalized() error {
	if e == nil {
		return errEngineNotConfigured
	}
	if e.store == nil {
		return nil
	}
	records, err := e.store.LoadFinalized()
	if err != nil {
		return fmt.Errorf("load finalized reserves: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for subject, record := range records {
		st := e.subjects[subject]
		if st == nil {
			st = newSubjectState()
			e.subjects[subject] = st
		}
		st.mu.Lock()
		st.finalized = record.Clone()
		st.mu.Unlock()
	}
	return nil
}

func (e *Engine) timestamp() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) hasRole(role string, addr [20]byte) bool {
	return e.auth != nil && e.auth.HasRole(role, addr[:])
}

// subjectState returns the state shard for the subject, creating it when
// requested.
func (e *Engine) subjectState(subject string, create bool) *subjectState {
	e.mu.RLock()
	st := e.subjects[subject]
	e.mu.RUnlock()
	if st != nil || !create {
		return st
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if st = e.subjects[subject]; st == nil {
		st = newSubjectState()
		e.subjects[subject] = st
	}
	return st
}

func validateBalance(balance *big.Int) error {
	if balance == nil || balance.Sign() < 0 || balance.Cmp(maxBalance) > 0 {
		return ErrBalanceOutOfRange
	}
	return nil
}

// SubmitAttestation records the caller's balance claim for the subject and
// evaluates consensus for that subject. A resubmission before finalization
// overwrites the caller's previous claim in place.
func (e *Engine) SubmitAttestation(caller [20]byte, subject string, balance *big.Int) error {
	if e == nil {
		return errEngineNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.hasRole(RoleAttester, caller) {
		return ErrPermissionDenied
	}
	subject = normalizeSubject(subject)
	if subject == "" {
		return ErrInvalidSubject
	}
	if err := validateBalance(balance); err != nil {
		return err
	}

	e.register(caller)
	params := e.CurrentParams()
	st := e.subjectState(subject, true)

	st.mu.Lock()
	defer st.mu.Unlock()
	e.upsertLocked(st, subject, caller, balance)
	return e.evaluateConsensusLocked(st, subject, params)
}

// BatchAttestBalances submits one claim per (subject, balance) pair. The whole
// batch is validated before any state changes; a single malformed element
// rejects the entire call. Consensus is evaluated once per distinct subject
// after all upserts land.
func (e *Engine) BatchAttestBalances(caller [20]byte, subjects []string, balances []*big.Int) error {
	if e == nil {
		return errEngineNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.hasRole(RoleAttester, caller) {
		return ErrPermissionDenied
	}
	if len(subjects) != len(balances) {
		return ErrMismatchedArrays
	}
	if len(subjects) == 0 {
		return nil
	}

	normalized := make([]string, len(subjects))
	for i, subject := range subjects {
		normalized[i] = normalizeSubject(subject)
		if normalized[i] == "" {
			return fmt.Errorf("%w: element %d", ErrInvalidSubject, i)
		}
		if err := validateBalance(balances[i]); err != nil {
			return fmt.Errorf("%w: element %d", err, i)
		}
	}

	e.register(caller)

	touched := make([]string, 0, len(normalized))
	seen := make(map[string]struct{}, len(normalized))
	for i, subject := range normalized {
		st := e.subjectState(subject, true)
		st.mu.Lock()
		e.upsertLocked(st, subject, caller, balances[i])
		st.mu.Unlock()
		if _, ok := seen[subject]; !ok {
			seen[subject] = struct{}{}
			touched = append(touched, subject)
		}
	}

	e.emitter.Emit(events.BatchAttestationSubmitted{Attester: caller, Count: len(normalized)})

	params := e.CurrentParams()
	for _, subject := range touched {
		st := e.subjectState(subject, false)
		if st == nil {
			continue
		}
		st.mu.Lock()
		err := e.evaluateConsensusLocked(st, subject, params)
		st.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// register assigns a sequential index on first contact and emits the
// registration event. Re-registration is an idempotent no-op.
func (e *Engine) register(addr [20]byte) {
	e.mu.Lock()
	idx, assigned := e.registry.register(addr)
	e.mu.Unlock()
	if assigned {
		e.emitter.Emit(events.AttesterRegistered{Attester: addr, Index: idx})
	}
}

// upsertLocked writes the (subject, attester) claim slot and refreshes the
// attester's liveness record. Callers hold st.mu.
func (e *Engine) upsertLocked(st *subjectState, subject string, attester [20]byte, balance *big.Int) {
	now := e.timestamp()
	st.pending[attester] = &Attestation{
		Attester:    attester,
		Balance:     new(big.Int).Set(balance),
		SubmittedAt: now,
	}
	if reactivated := st.touchLiveness(attester, now); reactivated {
		e.telemetry.ObserveAttesterReactivated(subject)
		e.emitter.Emit(events.AttesterReactivated{Subject: subject, Attester: attester})
	}
	e.telemetry.ObserveAttestation(subject)
	e.emitter.Emit(events.AttestationSubmitted{
		Subject:   subject,
		Attester:  attester,
		Balance:   balance,
		Timestamp: now.Unix(),
	})
}

// validSetLocked returns the pending claims that count toward quorum: claims
// from currently active attesters no older than the attestation timeout.
// Roster order keeps the result deterministic. Callers hold st.mu.
func (e *Engine) validSetLocked(st *subjectState, now time.Time, timeout time.Duration) []*Attestation {
	valid := make([]*Attestation, 0, len(st.pending))
	for _, addr := range st.roster {
		att := st.pending[addr]
		if att == nil {
			continue
		}
		rec := st.liveness[addr]
		if rec == nil || !rec.active {
			continue
		}
		if now.Sub(att.SubmittedAt) > timeout {
			continue
		}
		valid = append(valid, att)
	}
	return valid
}

// evaluateConsensusLocked checks the subject's valid claim set against the
// quorum threshold and finalizes when it is met. Below threshold the round
// simply stays open. Callers hold st.mu.
func (e *Engine) evaluateConsensusLocked(st *subjectState, subject string, params Params) error {
	now := e.timestamp()
	valid := e.validSetLocked(st, now, params.AttestationTimeout)
	if len(valid) < params.ConsensusThreshold {
		return nil
	}

	values := make([]*big.Int, len(valid))
	for i, att := range valid {
		values[i] = att.Balance
	}
	value := median(values)

	if err := e.finalizeLocked(st, subject, value, now, len(valid)); err != nil {
		return err
	}
	e.telemetry.ObserveConsensus(subject)
	e.emitter.Emit(events.ConsensusReached{
		Subject:      subject,
		Balance:      value,
		Participants: len(valid),
		Timestamp:    now.Unix(),
	})
	return nil
}

// finalizeLocked replaces the subject's finalized record wholesale and purges
// the entire pending set, expired and valid entries alike. The store write
// happens first so a persistence failure leaves the round untouched. Callers
// hold st.mu.
func (e *Engine) finalizeLocked(st *subjectState, subject string, value *big.Int, now time.Time, participants int) error {
	record := &FinalizedReserve{
		Balance:     new(big.Int).Set(value),
		UpdatedAt:   now,
		Participant: participants,
	}
	if e.store != nil {
		if err := e.store.PutFinalized(subject, record); err != nil {
			return fmt.Errorf("persist finalized reserve: %w", err)
		}
	}
	st.finalized = record
	st.pending = make(map[[20]byte]*Attestation)
	return nil
}

// median returns the midpoint of the supplied values: the middle element for
// an odd count, the floor average of the two middle elements for an even
// count. The input is not modified.
func median(values []*big.Int) *big.Int {
	sorted := make([]*big.Int, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return new(big.Int).Set(sorted[mid])
	}
	sum := new(big.Int).Add(sorted[mid-1], sorted[mid])
	return sum.Rsh(sum, 1)
}

// AttesterIndex returns the sequential index assigned to the address, or 0
// when the address has never submitted.
func (e *Engine) AttesterIndex(addr [20]byte) uint64 {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.index(addr)
}

// AttesterByIndex resolves an index back to its address.
func (e *Engine) AttesterByIndex(idx uint64) ([20]byte, bool) {
	if e == nil {
		return [20]byte{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.byIndex(idx)
}

// AttesterCount returns the number of registered attesters.
func (e *Engine) AttesterCount() uint64 {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.count()
}
