package reserve

import (
	"fmt"
	"time"
)

// maxMinReportingFrequency bounds how far apart attesters may be required to
// report. Anything beyond an hour would let liveness tracking drift far behind
// the attestation timeout in practice.
const maxMinReportingFrequency = time.Hour

// Params carries the consensus tuning knobs for the engine. MaxMissedReports
// is fixed at construction; the remaining fields have manager-gated runtime
// setters on the engine.
type Params struct {
	// ConsensusThreshold is the minimum count of fresh, active attestations
	// required to finalize a balance.
	ConsensusThreshold int
	// AttestationTimeout bounds how old a pending claim may be and still count
	// toward quorum.
	AttestationTimeout time.Duration
	// MaxStaleness bounds how old a finalized balance may be before the
	// staleness oracle flags it.
	MaxStaleness time.Duration
	// MinReportingFrequency is the expected spacing between reports from each
	// attester; missing a full interval increments the miss counter.
	MinReportingFrequency time.Duration
	// MaxMissedReports is the consecutive-miss count at which an attester is
	// marked inactive for a subject.
	MaxMissedReports uint64
}

// Validate verifies every parameter falls within its domain.
func (p Params) Validate() error {
	if p.ConsensusThreshold < 1 {
		return fmt.Errorf("%w: consensus threshold must be at least 1", ErrConfigOutOfBounds)
	}
	if p.AttestationTimeout <= 0 {
		return fmt.Errorf("%w: attestation timeout must be positive", ErrConfigOutOfBounds)
	}
	if p.MaxStaleness <= 0 {
		return fmt.Errorf("%w: max staleness must be positive", ErrConfigOutOfBounds)
	}
	if p.MinReportingFrequency <= 0 {
		return fmt.Errorf("%w: min reporting frequency must be positive", ErrConfigOutOfBounds)
	}
	if p.MinReportingFrequency > maxMinReportingFrequency {
		return fmt.Errorf("%w: min reporting frequency must not exceed %s", ErrConfigOutOfBounds, maxMinReportingFrequency)
	}
	if p.MaxMissedReports < 1 {
		return fmt.Errorf("%w: max missed reports must be at least 1", ErrConfigOutOfBounds)
	}
	return nil
}

// DefaultParams returns the engine defaults used when no explicit
// configuration is supplied.
func DefaultParams() Params {
	return Params{
		ConsensusThreshold:    3,
		AttestationTimeout:    6 * time.Hour,
		MaxStaleness:          24 * time.Hour,
		MinReportingFrequency: time.Hour,
		MaxMissedReports:      3,
	}
}
