package bankfeed

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// feeds are bounded uploads; anything larger is not a statement export
const maxFeedBytes = 8 << 20

// Handler wires bank feed import and categorisation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/companies/{companyID}/bank-accounts/{bankAccountID}/feed", func(r chi.Router) {
		r.Get("/rows", h.ListRows)
		r.Post("/import", h.Import)
		r.Post("/validate", h.Validate)
	})
	r.Post("/companies/{companyID}/bank-rows/{rowID}/categorize", h.Categorize)
}

type categorizeRequest struct {
	Category   string `json:"category" validate:"required"`
	AccountID  int64  `json:"accountId" validate:"required"`
	CustomerID *int64 `json:"customerId"`
	VendorID   *int64 `json:"vendorId"`
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	companyID, bankAccountID, ok := h.feedParams(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxFeedBytes))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable body")
		return
	}
	result, err := h.service.Import(r.Context(), companyID, bankAccountID, raw)
	if err != nil {
		h.respondError(w, "import feed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.feedParams(w, r); !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxFeedBytes))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable body")
		return
	}
	parsed, skipped, err := h.service.Validate(raw)
	if err != nil {
		h.respondError(w, "validate feed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"parsed": parsed, "skipped": skipped})
}

func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	companyID, bankAccountID, ok := h.feedParams(w, r)
	if !ok {
		return
	}
	rows, err := h.service.ListRows(r.Context(), companyID, bankAccountID)
	if err != nil {
		h.respondError(w, "list rows", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) Categorize(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	rowID, err := strconv.ParseInt(chi.URLParam(r, "rowID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid row id")
		return
	}
	var req categorizeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	row, err := h.service.Categorize(r.Context(), companyID, rowID, CategorizeInput{
		Category:   req.Category,
		AccountID:  req.AccountID,
		CustomerID: req.CustomerID,
		VendorID:   req.VendorID,
	})
	if err != nil {
		h.respondError(w, "categorize row", err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) feedParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return 0, 0, false
	}
	bankAccountID, err := strconv.ParseInt(chi.URLParam(r, "bankAccountID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid bank account id")
		return 0, 0, false
	}
	return companyID, bankAccountID, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrMissingHeaders):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, ErrRowNotFound), errors.Is(err, ErrBankAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrRowAlreadyPosted):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
