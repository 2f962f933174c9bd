package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/netgrid-io/plangate/internal/auth"
	"github.com/netgrid-io/plangate/internal/gateway"
)

// maxBodyBytes bounds submitted documents; rendered plans for a single
// site stay far below this.
const maxBodyBytes = 8 << 20

type Handler struct {
	Auth    auth.Authenticator
	Service *gateway.Service
}

func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/v1/evaluate", h.Evaluate)
	mux.HandleFunc("/v1/apply/", h.Apply)
	mux.HandleFunc("/v1/decisions/", h.GetDecision)
	return mux
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Evaluate runs the decision chain for a submitted plan+metadata
// envelope. Malformed documents come back as HTTP 200 carrying a deny
// Decision; only transport-level faults are HTTP errors.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if !h.ensure(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read request body"})
		return
	}

	res, err := h.Service.Evaluate(body)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, gateway.ErrInvalidTransition) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Apply re-runs the chain for a stored proposal against freshly fetched
// inputs and refuses mismatches.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	if !h.ensure(w, r, http.MethodPost) {
		return
	}

	proposalID := strings.TrimPrefix(r.URL.Path, "/v1/apply/")
	if proposalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing proposal_id"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read request body"})
		return
	}

	res, err := h.Service.Apply(proposalID, body)
	switch {
	case errors.Is(err, gateway.ErrProposalNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, gateway.ErrTamperSuspected):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "state": res.State})
	case errors.Is(err, gateway.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	if !h.ensure(w, r, http.MethodGet) {
		return
	}

	proposalID := strings.TrimPrefix(r.URL.Path, "/v1/decisions/")
	if proposalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing proposal_id"})
		return
	}

	decision, ok := h.Service.Decision(proposalID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "decision not found"})
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) ensure(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	if err := h.Auth.Authenticate(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
