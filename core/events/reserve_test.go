package events

import (
	"math/big"
	"testing"
)

func TestAttestationSubmittedAttributes(t *testing.T) {
	var attester [20]byte
	attester[19] = 0x0a

	evt := AttestationSubmitted{
		Subject:   " custodian-1 ",
		Attester:  attester,
		Balance:   big.NewInt(12345),
		Timestamp: 1_700_000_000,
	}
	payload := evt.Event()
	if payload.Type != TypeAttestationSubmitted {
		t.Fatalf("unexpected type %s", payload.Type)
	}
	if payload.Attributes["subject"] != "custodian-1" {
		t.Fatalf("subject not trimmed: %q", payload.Attributes["subject"])
	}
	if payload.Attributes["attester"] != "0x000000000000000000000000000000000000000a" {
		t.Fatalf("attester rendering: %q", payload.Attributes["attester"])
	}
	if payload.Attributes["balance"] != "12345" {
		t.Fatalf("balance rendering: %q", payload.Attributes["balance"])
	}
}

func TestForcedConsensusCarriesRoster(t *testing.T) {
	var a, b [20]byte
	a[0], b[0] = 0x0a, 0x0b

	evt := ForcedConsensusReached{
		Subject:      "custodian-1",
		Balance:      big.NewInt(100),
		Participants: [][20]byte{a, b},
		Values:       []*big.Int{big.NewInt(90), big.NewInt(110)},
		Timestamp:    1_700_000_000,
	}
	payload := evt.Event()
	if payload.Attributes["count"] != "2" {
		t.Fatalf("count rendering: %q", payload.Attributes["count"])
	}
	if payload.Attributes["values"] != "90,110" {
		t.Fatalf("values rendering: %q", payload.Attributes["values"])
	}
	participants := payload.Attributes["participants"]
	if participants != "0x0a00000000000000000000000000000000000000,0x0b00000000000000000000000000000000000000" {
		t.Fatalf("participants rendering: %q", participants)
	}
}

func TestNilBalancesRenderAsZero(t *testing.T) {
	evt := ReserveBalanceUpdated{Subject: "custodian-1"}
	payload := evt.Event()
	if payload.Attributes["oldBalance"] != "0" || payload.Attributes["newBalance"] != "0" {
		t.Fatalf("nil balances not normalized: %+v", payload.Attributes)
	}
}
