// Package handler contains the HTTP handlers for the claims API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/winfall/claimkeeper/internal/claims"
	"github.com/winfall/claimkeeper/internal/domain"
	"github.com/winfall/claimkeeper/internal/service"
)

// ClaimHandler serves claim discovery, submission, and session endpoints.
type ClaimHandler struct {
	svc    *service.ClaimService
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(svc *service.ClaimService, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{svc: svc, logger: logger.With(slog.String("handler", "claims"))}
}

// claimView is the wire shape of one claim record. Amounts are rendered as
// decimal strings so clients never lose precision to float parsing.
type claimView struct {
	Identity    domain.ClaimIdentity    `json:"identity"`
	Amount      string                  `json:"amount"`
	Formatted   string                  `json:"formatted"`
	Counterpart string                  `json:"counterpart,omitempty"`
	WinningSide domain.Side             `json:"winning_side,omitempty"`
	Status      domain.SubmissionStatus `json:"status"`
}

type seasonView struct {
	SeasonID uint64      `json:"season_id"`
	Claims   []claimView `json:"claims"`
}

// ListClaims returns the account's payable claims grouped by season.
// GET /api/claims?refresh=true&seasons=1,2
func (h *ClaimHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	refresh := q.Get("refresh") == "true"
	seasons, err := parseSeasons(q.Get("seasons"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid seasons parameter")
		return
	}

	groups, err := h.svc.Claims(r.Context(), seasons, refresh)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	out := make([]seasonView, 0, len(groups))
	for _, g := range groups {
		sv := seasonView{SeasonID: g.SeasonID, Claims: make([]claimView, 0, len(g.Records))}
		for _, rec := range g.Records {
			sv.Claims = append(sv.Claims, claimView{
				Identity:    rec.Identity,
				Amount:      rec.Amount.String(),
				Formatted:   claims.FormatUnits(rec.Amount, claims.LedgerDecimals),
				Counterpart: rec.Counterpart,
				WinningSide: rec.WinningSide,
				Status:      h.svc.Status(rec.Identity),
			})
		}
		out = append(out, sv)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": h.svc.Account(),
		"seasons": out,
	})
}

// SubmitClaim submits the claim transaction for one identity.
// POST /api/claims/submit
func (h *ClaimHandler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identity domain.ClaimIdentity `json:"identity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identity.Domain == "" {
		writeError(w, http.StatusBadRequest, "identity.domain is required")
		return
	}

	txHash, err := h.svc.Submit(r.Context(), req.Identity)
	if err != nil {
		var cerr *domain.ClaimError
		if errors.As(err, &cerr) {
			writeJSON(w, statusForKind(cerr.Kind), map[string]any{
				"error": cerr.Message,
				"kind":  cerr.Kind,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"identity": req.Identity,
		"tx_hash":  txHash,
		"status":   domain.SubmissionConfirmed,
	})
}

// ResetSession discards session submission state and cached discovery.
// POST /api/session/reset
func (h *ClaimHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// statusForKind maps classified submission errors to HTTP status codes.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindAlreadySubmitting, domain.KindAlreadyClaimed:
		return http.StatusConflict
	case domain.KindNotEligible, domain.KindSeasonNotFinalized, domain.KindNotFunded:
		return http.StatusUnprocessableEntity
	case domain.KindUserRejected:
		return http.StatusBadRequest
	case domain.KindInsufficientGas:
		return http.StatusPaymentRequired
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindGatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseSeasons(raw string) ([]uint64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
