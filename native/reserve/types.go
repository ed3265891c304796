package reserve

import (
	"math/big"
	"strings"
	"time"
)

const (
	// RoleAttester gates balance claim submission.
	RoleAttester = "ROLE_RESERVE_ATTESTER"
	// RoleManager gates consensus parameter changes.
	RoleManager = "ROLE_RESERVE_MANAGER"
	// RoleArbiter gates the forced-consensus and emergency override paths.
	RoleArbiter = "ROLE_RESERVE_ARBITER"

	moduleName = "reserve"
)

// maxBalance bounds claims to the uint128 domain. Larger values are rejected,
// never truncated.
var maxBalance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Authorizer answers role membership queries for the engine. The engine never
// manages grants itself; role administration lives with the caller.
type Authorizer interface {
	HasRole(role string, addr []byte) bool
}

// Attestation is a single pending balance claim from one attester about one
// subject. Each (subject, attester) pair holds at most one attestation;
// resubmission overwrites the slot in place.
type Attestation struct {
	Attester    [20]byte
	Balance     *big.Int
	SubmittedAt time.Time
}

// Clone returns a deep copy so callers cannot mutate engine-owned state.
func (a *Attestation) Clone() *Attestation {
	if a == nil {
		return nil
	}
	clone := &Attestation{Attester: a.Attester, SubmittedAt: a.SubmittedAt}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}

// FinalizedReserve is the single source of truth for a subject's reserve
// balance. It is replaced wholesale on every finalization, never patched.
type FinalizedReserve struct {
	Balance     *big.Int
	UpdatedAt   time.Time
	Participant int
}

// Clone returns a deep copy of the finalized record.
func (f *FinalizedReserve) Clone() *FinalizedReserve {
	if f == nil {
		return nil
	}
	clone := &FinalizedReserve{UpdatedAt: f.UpdatedAt, Participant: f.Participant}
	if f.Balance != nil {
		clone.Balance = new(big.Int).Set(f.Balance)
	}
	return clone
}

// AttesterStatus reports the liveness view for one (subject, attester) pair.
type AttesterStatus struct {
	Active        bool
	LastReport    time.Time
	MissedReports uint64
}

func normalizeSubject(subject string) string {
	return strings.TrimSpace(subject)
}
