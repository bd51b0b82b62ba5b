package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lawnchairsociety/combatroller/internal/display"
	"github.com/lawnchairsociety/combatroller/internal/logger"
	"github.com/lawnchairsociety/combatroller/internal/notation"
	"github.com/lawnchairsociety/combatroller/internal/roll"
)

// maxAPIBody caps request bodies; expressions are short.
const maxAPIBody = 4096

type attackRequest struct {
	Expression   string `json:"expression"`
	Advantage    bool   `json:"advantage"`
	Disadvantage bool   `json:"disadvantage"`
}

type attackResponse struct {
	Result int    `json:"result"`
	Rolls  []int  `json:"rolls"`
	Text   string `json:"text"`
}

type damageRequest struct {
	Expression string `json:"expression"`
	Critical   bool   `json:"critical"`
}

type damageResponse struct {
	Damage int    `json:"damage"`
	Rolls  []int  `json:"rolls"`
	Text   string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAPIAttack(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[attackRequest](w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	spec, err := notation.ParseAttack(payload.Expression)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if !s.allowAPIRoll(w, r) {
		return
	}

	opts := s.config.Rolls.AttackOptions()
	opts.Advantage = payload.Advantage
	opts.Disadvantage = payload.Disadvantage
	result := roll.RollToHit(s.newSource(), spec, opts)

	logger.Audit("api attack roll",
		"client_ip", s.clientIP(r),
		"result", result.Result,
		"rolls", result.Rolls)

	writeJSON(w, http.StatusOK, attackResponse{
		Result: result.Result,
		Rolls:  result.Rolls,
		Text:   display.FormatAttack(result),
	})
}

func (s *Server) handleAPIDamage(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[damageRequest](w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	spec, err := notation.ParseDamage(payload.Expression)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if !s.allowAPIRoll(w, r) {
		return
	}

	result, err := roll.RollDamage(s.newSource(), spec, payload.Critical)
	if err != nil {
		logger.Error("api damage roll failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	logger.Audit("api damage roll",
		"client_ip", s.clientIP(r),
		"damage", result.Damage,
		"rolls", result.Rolls)

	rolls := result.Rolls
	if rolls == nil {
		rolls = []int{}
	}
	writeJSON(w, http.StatusOK, damageResponse{
		Damage: result.Damage,
		Rolls:  rolls,
		Text:   display.FormatDamage(result),
	})
}

// allowAPIRoll applies the per-IP throttle, writing 429 when it trips.
func (s *Server) allowAPIRoll(w http.ResponseWriter, r *http.Request) bool {
	check := s.apiThrottle.Check(s.clientIP(r))
	if check.Allowed {
		return true
	}
	w.Header().Set("Retry-After", fmt.Sprint(check.WaitSeconds))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: check.Reason})
	return false
}

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var payload T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		if err == io.EOF {
			return payload, fmt.Errorf("request body is empty")
		}
		return payload, fmt.Errorf("invalid request body: %w", err)
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warning("Failed to write JSON response", "error", err)
	}
}
