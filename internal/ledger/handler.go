package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/money"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler wires posting engine endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers HTTP routes for the posting engine.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/companies/{companyID}/ledger/transactions", h.Post)
	r.Get("/companies/{companyID}/ledger/transactions/{txID}", h.Get)
	r.Post("/companies/{companyID}/ledger/transactions/{txID}/reverse", h.Reverse)
}

type postLineRequest struct {
	AccountID int64  `json:"accountId" validate:"required"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

type postRequest struct {
	Date        string            `json:"date" validate:"required"`
	Description string            `json:"description" validate:"required"`
	SourceKind  string            `json:"sourceKind" validate:"required"`
	SourceID    int64             `json:"sourceId"`
	Lines       []postLineRequest `json:"lines" validate:"required,dive"`
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	lines := make([]PostingLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		line := PostingLine{AccountID: l.AccountID}
		if l.Debit != "" {
			if line.Debit, err = money.Parse(l.Debit); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
				return
			}
		}
		if l.Credit != "" {
			if line.Credit, err = money.Parse(l.Credit); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
				return
			}
		}
		lines = append(lines, line)
	}
	txID, err := h.service.Post(r.Context(), companyID, PostingInput{
		Date:        date,
		Description: req.Description,
		Source:      SourceRef{Kind: SourceKind(req.SourceKind), ID: req.SourceID},
		Lines:       lines,
	})
	if err != nil {
		h.respondPostError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"transactionId": txID.String()})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	txID, err := uuid.Parse(chi.URLParam(r, "txID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	trans, err := h.service.GetTransaction(r.Context(), companyID, txID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get transaction", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trans)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	txID, err := uuid.Parse(chi.URLParam(r, "txID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	reversalID, err := h.service.Reverse(r.Context(), companyID, txID)
	if err != nil {
		h.respondPostError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"transactionId": reversalID.String()})
}

func (h *Handler) respondPostError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownAccount), errors.Is(err, ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientLines), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidSettlement):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnbalanced):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Integrity Violation", err.Error())
	case errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("ledger posting", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
