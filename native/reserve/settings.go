package reserve

import (
	"strconv"
	"time"

	"reservenet/core/events"
)

func (e *Engine) updateParam(caller [20]byte, name string, apply func(*Params) (old, new string)) error {
	if e == nil {
		return errEngineNotConfigured
	}
	if !e.hasRole(RoleManager, caller) {
		return ErrPermissionDenied
	}

	e.mu.Lock()
	next := e.params
	oldValue, newValue := apply(&next)
	if err := next.Validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.params = next
	e.mu.Unlock()

	e.emitter.Emit(events.ReserveParamUpdated{Name: name, Old: oldValue, New: newValue})
	return nil
}

// SetConsensusThreshold updates the quorum size required to finalize.
func (e *Engine) SetConsensusThreshold(caller [20]byte, threshold int) error {
	return e.updateParam(caller, "consensusThreshold", func(p *Params) (string, string) {
		old := strconv.Itoa(p.ConsensusThreshold)
		p.ConsensusThreshold = threshold
		return old, strconv.Itoa(threshold)
	})
}

// SetAttestationTimeout updates how old a claim may be and still count.
func (e *Engine) SetAttestationTimeout(caller [20]byte, timeout time.Duration) error {
	return e.updateParam(caller, "attestationTimeout", func(p *Params) (string, string) {
		old := p.AttestationTimeout.String()
		p.AttestationTimeout = timeout
		return old, timeout.String()
	})
}

// SetMaxStaleness updates the freshness bound reported by the staleness oracle.
func (e *Engine) SetMaxStaleness(caller [20]byte, maxStaleness time.Duration) error {
	return e.updateParam(caller, "maxStaleness", func(p *Params) (string, string) {
		old := p.MaxStaleness.String()
		p.MaxStaleness = maxStaleness
		return old, maxStaleness.String()
	})
}

// SetMinReportingFrequency updates the expected spacing between reports.
func (e *Engine) SetMinReportingFrequency(caller [20]byte, frequency time.Duration) error {
	return e.updateParam(caller, "minReportingFrequency", func(p *Params) (string, string) {
		old := p.MinReportingFrequency.String()
		p.MinReportingFrequency = frequency
		return old, frequency.String()
	})
}

// CurrentParams returns a copy of the active parameters.
func (e *Engine) CurrentParams() Params {
	if e == nil {
		return Params{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}
