package receivables

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler wires the aging report and reminder endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/companies/{companyID}/receivables/aging", h.Aging)
	r.Post("/companies/{companyID}/receivables/reminders", h.SendReminders)
}

type sendRemindersRequest struct {
	CustomerIDs []int64 `json:"customerIds"`
}

func (h *Handler) Aging(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	rows, err := h.service.Aging(r.Context(), companyID)
	if err != nil {
		h.logger.Error("aging report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) SendReminders(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	var req sendRemindersRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
			return
		}
	}
	outcomes, err := h.service.SendReminders(r.Context(), companyID, req.CustomerIDs)
	if err != nil {
		h.logger.Error("send reminders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, outcomes)
}
