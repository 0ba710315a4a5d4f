package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/winfall/claimkeeper/internal/domain"
	"github.com/winfall/claimkeeper/internal/service"
)

// HistoryHandler serves the settlement history endpoint.
type HistoryHandler struct {
	svc    *service.ClaimService
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(svc *service.ClaimService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{svc: svc, logger: logger.With(slog.String("handler", "history"))}
}

type settlementView struct {
	ID        string                  `json:"id"`
	Domain    domain.ClaimDomain      `json:"domain"`
	SeasonID  uint64                  `json:"season_id"`
	MarketID  uint64                  `json:"market_id,omitempty"`
	Side      domain.Side             `json:"side,omitempty"`
	Player    string                  `json:"player,omitempty"`
	Amount    string                  `json:"amount"`
	TxHash    string                  `json:"tx_hash"`
	Source    domain.SettlementSource `json:"source"`
	SettledAt string                  `json:"settled_at"`
}

// ListHistory returns recorded settlements, newest first.
// GET /api/history?season=1&limit=50&offset=0
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	opts.Account = h.svc.Account()

	recs, err := h.svc.History(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]settlementView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, settlementView{
			ID:        rec.ID,
			Domain:    rec.Domain,
			SeasonID:  rec.SeasonID,
			MarketID:  rec.MarketID,
			Side:      rec.Side,
			Player:    rec.Player,
			Amount:    rec.Amount,
			TxHash:    rec.TxHash,
			Source:    rec.Source,
			SettledAt: rec.SettledAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": out})
}
