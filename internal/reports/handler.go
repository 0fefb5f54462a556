package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler wires statement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the statement generator.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/companies/{companyID}/reports/trial-balance", h.TrialBalance)
	r.Get("/companies/{companyID}/reports/trial-balance.csv", h.TrialBalanceCSV)
	r.Get("/companies/{companyID}/reports/general-ledger", h.GeneralLedger)
	r.Get("/companies/{companyID}/reports/general-ledger.csv", h.GeneralLedgerCSV)
	r.Get("/companies/{companyID}/reports/pnl", h.ProfitAndLoss)
	r.Get("/companies/{companyID}/reports/pnl.csv", h.ProfitAndLossCSV)
	r.Get("/companies/{companyID}/reports/balance-sheet", h.BalanceSheet)
	r.Get("/companies/{companyID}/reports/balance-sheet.csv", h.BalanceSheetCSV)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	companyID, asOf, ok := h.companyAndOptionalDate(w, r, "asOf")
	if !ok {
		return
	}
	tb, err := h.service.GetTrialBalance(r.Context(), companyID, asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) TrialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	companyID, asOf, ok := h.companyAndOptionalDate(w, r, "asOf")
	if !ok {
		return
	}
	tb, err := h.service.GetTrialBalance(r.Context(), companyID, asOf)
	if err != nil {
		h.logger.Error("trial balance csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.csv"`)
	if err := WriteTrialBalanceCSV(w, tb); err != nil {
		h.logger.Error("write trial balance csv", slog.Any("error", err))
	}
}

func (h *Handler) GeneralLedger(w http.ResponseWriter, r *http.Request) {
	companyID, from, to, ok := h.companyAndRange(w, r)
	if !ok {
		return
	}
	gl, err := h.service.GetGeneralLedger(r.Context(), companyID, from, to)
	if err != nil {
		h.logger.Error("general ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, gl)
}

func (h *Handler) GeneralLedgerCSV(w http.ResponseWriter, r *http.Request) {
	companyID, from, to, ok := h.companyAndRange(w, r)
	if !ok {
		return
	}
	gl, err := h.service.GetGeneralLedger(r.Context(), companyID, from, to)
	if err != nil {
		h.logger.Error("general ledger csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="general-ledger.csv"`)
	if err := WriteGeneralLedgerCSV(w, gl); err != nil {
		h.logger.Error("write general ledger csv", slog.Any("error", err))
	}
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	companyID, from, to, ok := h.companyAndRange(w, r)
	if !ok {
		return
	}
	pl, err := h.service.GetProfitAndLoss(r.Context(), companyID, from, to)
	if err != nil {
		h.logger.Error("profit and loss", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) ProfitAndLossCSV(w http.ResponseWriter, r *http.Request) {
	companyID, from, to, ok := h.companyAndRange(w, r)
	if !ok {
		return
	}
	pl, err := h.service.GetProfitAndLoss(r.Context(), companyID, from, to)
	if err != nil {
		h.logger.Error("profit and loss csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="profit-and-loss.csv"`)
	if err := WriteProfitAndLossCSV(w, pl); err != nil {
		h.logger.Error("write profit and loss csv", slog.Any("error", err))
	}
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	companyID, asOf, ok := h.companyAndOptionalDate(w, r, "asOf")
	if !ok {
		return
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if asOf != nil {
		date = *asOf
	}
	bs, err := h.service.GetBalanceSheet(r.Context(), companyID, date)
	if err != nil {
		h.logger.Error("balance sheet", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) BalanceSheetCSV(w http.ResponseWriter, r *http.Request) {
	companyID, asOf, ok := h.companyAndOptionalDate(w, r, "asOf")
	if !ok {
		return
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if asOf != nil {
		date = *asOf
	}
	bs, err := h.service.GetBalanceSheet(r.Context(), companyID, date)
	if err != nil {
		h.logger.Error("balance sheet csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="balance-sheet.csv"`)
	if err := WriteBalanceSheetCSV(w, bs); err != nil {
		h.logger.Error("write balance sheet csv", slog.Any("error", err))
	}
}

func (h *Handler) companyAndOptionalDate(w http.ResponseWriter, r *http.Request, param string) (int64, *time.Time, bool) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return 0, nil, false
	}
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return companyID, nil, true
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", param+" must be YYYY-MM-DD")
		return 0, nil, false
	}
	return companyID, &date, true
}

func (h *Handler) companyAndRange(w http.ResponseWriter, r *http.Request) (int64, time.Time, time.Time, bool) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return 0, time.Time{}, time.Time{}, false
	}
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return 0, time.Time{}, time.Time{}, false
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return 0, time.Time{}, time.Time{}, false
	}
	return companyID, from, to, true
}
