package reserved

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func parseBalance(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("balance required")
	}
	balance, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("balance must be a base-10 integer")
	}
	return balance, nil
}

func (s *Server) principal(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return nil, false
	}
	return principal, true
}

func (s *Server) handleSubmitAttestation(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var payload struct {
		Subject string `json:"subject"`
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	balance, err := parseBalance(payload.Balance)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.engine.SubmitAttestation(principal.Address, payload.Subject, balance); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"subject":  strings.TrimSpace(payload.Subject),
		"attester": FormatAddress(principal.Address),
	})
}

func (s *Server) handleBatchAttest(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var payload struct {
		Subjects []string `json:"subjects"`
		Balances []string `json:"balances"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	balances := make([]*big.Int, len(payload.Balances))
	for i, raw := range payload.Balances {
		balance, err := parseBalance(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("element %d: %s", i, err)})
			return
		}
		balances[i] = balance
	}
	if err := s.engine.BatchAttestBalances(principal.Address, payload.Subjects, balances); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"attester": FormatAddress(principal.Address),
		"count":    len(payload.Subjects),
	})
}

func (s *Server) handleReserveBalance(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	balance, stale := s.engine.ReserveBalanceAndStaleness(subject)
	response := map[string]any{
		"subject": strings.TrimSpace(subject),
		"balance": balance.String(),
		"stale":   stale,
	}
	if record, ok := s.engine.FinalizedReserveFor(subject); ok {
		response["updatedAt"] = record.UpdatedAt.UTC().Format(time.RFC3339)
		response["participants"] = record.Participant
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"subject": strings.TrimSpace(subject),
		"pending": s.engine.PendingAttestationCount(subject),
	})
}

func (s *Server) handlePendingAttestation(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	attester, err := ParseAddress(chi.URLParam(r, "attester"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	balance, submittedAt, ok := s.engine.PendingAttestation(subject, attester)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending attestation"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"subject":     strings.TrimSpace(subject),
		"attester":    FormatAddress(attester),
		"balance":     balance.String(),
		"submittedAt": submittedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAttesterStatus(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	attester, err := ParseAddress(chi.URLParam(r, "attester"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	status, ok := s.engine.AttesterStatusFor(subject, attester)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no reporting history"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"subject":       strings.TrimSpace(subject),
		"attester":      FormatAddress(attester),
		"active":        status.Active,
		"lastReport":    status.LastReport.UTC().Format(time.RFC3339),
		"missedReports": status.MissedReports,
	})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if err := s.engine.UpdateInactiveAttesters(subject); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"subject": strings.TrimSpace(subject)})
}

func (s *Server) handleForceConsensus(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var payload struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := s.engine.ForceConsensus(principal.Address, payload.Subject); err != nil {
		s.writeError(w, err)
		return
	}
	balance, _ := s.engine.ReserveBalanceAndStaleness(payload.Subject)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"subject": strings.TrimSpace(payload.Subject),
		"balance": balance.String(),
	})
}

func (s *Server) handleEmergencySet(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var payload struct {
		Subject string `json:"subject"`
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	balance, err := parseBalance(payload.Balance)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.engine.EmergencySetReserve(principal.Address, payload.Subject, balance); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"subject": strings.TrimSpace(payload.Subject),
		"balance": balance.String(),
	})
}

func (s *Server) handleResetConsensus(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var payload struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := s.engine.ResetConsensus(principal.Address, payload.Subject); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"subject": strings.TrimSpace(payload.Subject)})
}

func (s *Server) handleSetParam(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}
	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	value := strings.TrimSpace(payload.Value)
	name := chi.URLParam(r, "name")

	var err error
	switch name {
	case "consensusThreshold":
		threshold, parseErr := strconv.Atoi(value)
		if parseErr != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value must be an integer"})
			return
		}
		err = s.engine.SetConsensusThreshold(principal.Address, threshold)
	case "attestationTimeout", "maxStaleness", "minReportingFrequency":
		duration, parseErr := time.ParseDuration(value)
		if parseErr != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value must be a duration"})
			return
		}
		switch name {
		case "attestationTimeout":
			err = s.engine.SetAttestationTimeout(principal.Address, duration)
		case "maxStaleness":
			err = s.engine.SetMaxStaleness(principal.Address, duration)
		default:
			err = s.engine.SetMinReportingFrequency(principal.Address, duration)
		}
	default:
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown parameter"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": value})
}
