package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/money"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler wires invoice and bill endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice and bill routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/companies/{companyID}/invoices", func(r chi.Router) {
		r.Get("/", h.ListInvoices)
		r.Post("/", h.CreateInvoice)
		r.Get("/{invoiceID}", h.GetInvoice)
		r.Post("/{invoiceID}/payments", h.PayInvoice)
		r.Post("/{invoiceID}/cancel", h.CancelInvoice)
	})
	r.Route("/companies/{companyID}/bills", func(r chi.Router) {
		r.Get("/", h.ListBills)
		r.Post("/", h.CreateBill)
		r.Get("/{billID}", h.GetBill)
		r.Post("/{billID}/payments", h.PayBill)
		r.Post("/{billID}/cancel", h.CancelBill)
	})
}

type createInvoiceRequest struct {
	CustomerID int64  `json:"customerId" validate:"required"`
	Number     string `json:"number" validate:"required"`
	IssueDate  string `json:"issueDate" validate:"required,datetime=2006-01-02"`
	Terms      string `json:"terms"`
	Total      string `json:"total" validate:"required"`
	Tax        string `json:"tax"`
}

type createBillRequest struct {
	VendorID  int64  `json:"vendorId" validate:"required"`
	Number    string `json:"number" validate:"required"`
	IssueDate string `json:"issueDate" validate:"required,datetime=2006-01-02"`
	Terms     string `json:"terms"`
	Total     string `json:"total" validate:"required"`
}

type paymentRequest struct {
	Amount string `json:"amount" validate:"required"`
	PaidAt string `json:"paidAt" validate:"required,datetime=2006-01-02"`
	Method string `json:"method"`
	Note   string `json:"note"`
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issue, _ := time.Parse("2006-01-02", req.IssueDate)
	total, err := money.Parse(req.Total)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid total amount")
		return
	}
	var tax money.Cents
	if req.Tax != "" {
		if tax, err = money.Parse(req.Tax); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tax amount")
			return
		}
	}
	inv, err := h.service.CreateInvoice(r.Context(), companyID, InvoiceInput{
		CustomerID: req.CustomerID,
		Number:     req.Number,
		IssueDate:  issue,
		Terms:      req.Terms,
		Total:      total,
		Tax:        tax,
	})
	if err != nil {
		h.respondError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	invoices, err := h.service.ListInvoices(r.Context(), companyID)
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, docID, ok := h.docParams(w, r, "invoiceID")
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), companyID, docID)
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, docID, ok := h.docParams(w, r, "invoiceID")
	if !ok {
		return
	}
	in, ok := h.decodePayment(w, r)
	if !ok {
		return
	}
	inv, err := h.service.RecordInvoicePayment(r.Context(), companyID, docID, in)
	if err != nil {
		h.respondError(w, "pay invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, docID, ok := h.docParams(w, r, "invoiceID")
	if !ok {
		return
	}
	inv, err := h.service.CancelInvoice(r.Context(), companyID, docID)
	if err != nil {
		h.respondError(w, "cancel invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	var req createBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issue, _ := time.Parse("2006-01-02", req.IssueDate)
	total, err := money.Parse(req.Total)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid total amount")
		return
	}
	b, err := h.service.CreateBill(r.Context(), companyID, BillInput{
		VendorID:  req.VendorID,
		Number:    req.Number,
		IssueDate: issue,
		Terms:     req.Terms,
		Total:     total,
	})
	if err != nil {
		h.respondError(w, "create bill", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	bills, err := h.service.ListBills(r.Context(), companyID)
	if err != nil {
		h.respondError(w, "list bills", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
}

func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	companyID, docID, ok := h.docParams(w, r, "billID")
	if !ok {
		return
	}
	b, err := h.service.GetBill(r.Context(), companyID, docID)
	if err != nil {
		h.respondError(w, "get bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	companyID, docID, ok := h.docParams(w, r, "billID")
	if !ok {
		return
	}
	in, ok := h.decodePayment(w, r)
	if !ok {
		return
	}
	b, err := h.service.RecordBillPayment(r.Context(), companyID, docID, in)
	if err != nil {
		h.respondError(w, "pay bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) CancelBill(w http.ResponseWriter, r *http.Request) {
	companyID, docID, ok := h.docParams(w, r, "billID")
	if !ok {
		return
	}
	b, err := h.service.CancelBill(r.Context(), companyID, docID)
	if err != nil {
		h.respondError(w, "cancel bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) docParams(w http.ResponseWriter, r *http.Request, param string) (int64, int64, bool) {
	companyID, err := accounts.CompanyIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return 0, 0, false
	}
	docID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return 0, 0, false
	}
	return companyID, docID, true
}

func (h *Handler) decodePayment(w http.ResponseWriter, r *http.Request) (PaymentInput, bool) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return PaymentInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return PaymentInput{}, false
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payment amount")
		return PaymentInput{}, false
	}
	paidAt, _ := time.Parse("2006-01-02", req.PaidAt)
	return PaymentInput{Amount: amount, PaidAt: paidAt, Method: req.Method, Note: req.Note}, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDocumentClosed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrPostingAccountMissing):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
