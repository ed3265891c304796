package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"reservenet/core/types"
)

const (
	// TypeAttestationSubmitted is emitted whenever an attester's balance claim is accepted.
	TypeAttestationSubmitted = "reserve.attestation.submitted"
	// TypeBatchAttestationSubmitted is emitted once per accepted batch submission.
	TypeBatchAttestationSubmitted = "reserve.attestation.batch"
	// TypeAttesterRegistered is emitted the first time an address submits an attestation.
	TypeAttesterRegistered = "reserve.attester.registered"
	// TypeConsensusReached is emitted when a subject's valid claims meet the quorum threshold.
	TypeConsensusReached = "reserve.consensus.reached"
	// TypeForcedConsensusReached is emitted when an arbiter finalizes below quorum.
	TypeForcedConsensusReached = "reserve.consensus.forced"
	// TypeReserveBalanceUpdated is emitted when an arbiter overwrites a finalized balance directly.
	TypeReserveBalanceUpdated = "reserve.balance.updated"
	// TypeAttesterMarkedInactive is emitted when the liveness sweep deactivates an attester.
	TypeAttesterMarkedInactive = "reserve.attester.inactive"
	// TypeAttesterReactivated is emitted when a previously inactive attester submits again.
	TypeAttesterReactivated = "reserve.attester.reactivated"
	// TypeReserveParamUpdated is emitted by every successful parameter setter.
	TypeReserveParamUpdated = "reserve.param.updated"
)

func attesterHex(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func balanceString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// AttestationSubmitted captures a single accepted balance claim.
type AttestationSubmitted struct {
	Subject   string
	Attester  [20]byte
	Balance   *big.Int
	Timestamp int64
}

func (AttestationSubmitted) EventType() string { return TypeAttestationSubmitted }

// Event converts the submission into the generic event representation.
func (e AttestationSubmitted) Event() *types.Event {
	return &types.Event{
		Type: TypeAttestationSubmitted,
		Attributes: map[string]string{
			"subject":   strings.TrimSpace(e.Subject),
			"attester":  attesterHex(e.Attester),
			"balance":   balanceString(e.Balance),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// BatchAttestationSubmitted summarises an accepted batch call.
type BatchAttestationSubmitted struct {
	Attester [20]byte
	Count    int
}

func (BatchAttestationSubmitted) EventType() string { return TypeBatchAttestationSubmitted }

func (e BatchAttestationSubmitted) Event() *types.Event {
	return &types.Event{
		Type: TypeBatchAttestationSubmitted,
		Attributes: map[string]string{
			"attester": attesterHex(e.Attester),
			"count":    strconv.Itoa(e.Count),
		},
	}
}

// AttesterRegistered records the index assignment for a first-time attester.
type AttesterRegistered struct {
	Attester [20]byte
	Index    uint64
}

func (AttesterRegistered) EventType() string { return TypeAttesterRegistered }

func (e AttesterRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeAttesterRegistered,
		Attributes: map[string]string{
			"attester": attesterHex(e.Attester),
			"index":    strconv.FormatUint(e.Index, 10),
		},
	}
}

// ConsensusReached captures a normal quorum finalization.
type ConsensusReached struct {
	Subject      string
	Balance      *big.Int
	Participants int
	Timestamp    int64
}

func (ConsensusReached) EventType() string { return TypeConsensusReached }

func (e ConsensusReached) Event() *types.Event {
	return &types.Event{
		Type: TypeConsensusReached,
		Attributes: map[string]string{
			"subject":      strings.TrimSpace(e.Subject),
			"balance":      balanceString(e.Balance),
			"participants": strconv.Itoa(e.Participants),
			"timestamp":    strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// ForcedConsensusReached captures an arbiter-forced finalization. Unlike the
// normal consensus event it carries the full roster of contributing attesters
// and their raw claims so the override is auditable after the fact.
type ForcedConsensusReached struct {
	Subject      string
	Balance      *big.Int
	Caller       [20]byte
	Participants [][20]byte
	Values       []*big.Int
	Timestamp    int64
}

func (ForcedConsensusReached) EventType() string { return TypeForcedConsensusReached }

func (e ForcedConsensusReached) Event() *types.Event {
	participants := make([]string, 0, len(e.Participants))
	for _, p := range e.Participants {
		participants = append(participants, attesterHex(p))
	}
	values := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		values = append(values, balanceString(v))
	}
	return &types.Event{
		Type: TypeForcedConsensusReached,
		Attributes: map[string]string{
			"subject":      strings.TrimSpace(e.Subject),
			"balance":      balanceString(e.Balance),
			"caller":       attesterHex(e.Caller),
			"participants": strings.Join(participants, ","),
			"values":       strings.Join(values, ","),
			"count":        strconv.Itoa(len(e.Participants)),
			"timestamp":    strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// ReserveBalanceUpdated records a direct emergency overwrite of a finalized balance.
type ReserveBalanceUpdated struct {
	Subject    string
	OldBalance *big.Int
	NewBalance *big.Int
	Caller     [20]byte
	Timestamp  int64
}

func (ReserveBalanceUpdated) EventType() string { return TypeReserveBalanceUpdated }

func (e ReserveBalanceUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveBalanceUpdated,
		Attributes: map[string]string{
			"subject":    strings.TrimSpace(e.Subject),
			"oldBalance": balanceString(e.OldBalance),
			"newBalance": balanceString(e.NewBalance),
			"caller":     attesterHex(e.Caller),
			"timestamp":  strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// AttesterMarkedInactive records an attester exceeding the tolerated miss count.
type AttesterMarkedInactive struct {
	Subject       string
	Attester      [20]byte
	MissedReports uint64
}

func (AttesterMarkedInactive) EventType() string { return TypeAttesterMarkedInactive }

func (e AttesterMarkedInactive) Event() *types.Event {
	return &types.Event{
		Type: TypeAttesterMarkedInactive,
		Attributes: map[string]string{
			"subject":       strings.TrimSpace(e.Subject),
			"attester":      attesterHex(e.Attester),
			"missedReports": strconv.FormatUint(e.MissedReports, 10),
		},
	}
}

// AttesterReactivated records an inactive attester resuming timely reporting.
type AttesterReactivated struct {
	Subject  string
	Attester [20]byte
}

func (AttesterReactivated) EventType() string { return TypeAttesterReactivated }

func (e AttesterReactivated) Event() *types.Event {
	return &types.Event{
		Type: TypeAttesterReactivated,
		Attributes: map[string]string{
			"subject":  strings.TrimSpace(e.Subject),
			"attester": attesterHex(e.Attester),
		},
	}
}

// ReserveParamUpdated records a successful governance parameter change.
type ReserveParamUpdated struct {
	Name string
	Old  string
	New  string
}

func (ReserveParamUpdated) EventType() string { return TypeReserveParamUpdated }

func (e ReserveParamUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveParamUpdated,
		Attributes: map[string]string{
			"name": strings.TrimSpace(e.Name),
			"old":  e.Old,
			"new":  e.New,
		},
	}
}
