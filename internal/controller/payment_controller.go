package controller

import (
	"net/http"

	appPayment "github.com/cassiomorais/payorders/internal/application/payment"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/cassiomorais/payorders/internal/infrastructure/gateway"
	"github.com/go-chi/chi/v5"
)

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	service *appPayment.Service
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(service *appPayment.Service) *PaymentController {
	return &PaymentController{service: service}
}

// CreatePayment handles POST /api/v1/payments
func (h *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Create(r.Context(), req.toService())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", res.PaymentURL)
	writeJSON(w, http.StatusCreated, CreatePaymentResponse{
		Payment:    FromPayment(res.Payment),
		PaymentURL: res.PaymentURL,
	})
}

// ProcessPayment handles POST /api/v1/payments/{id}/process
func (h *PaymentController) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req ProcessPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Process(r.Context(), id, gateway.ChargeDetails{
		Token:    req.Token,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessPaymentResponse{
		Payment:       FromPayment(res.Payment),
		TransactionID: res.TransactionID,
	})
}

// CancelPayment handles POST /api/v1/payments/{id}/cancel
func (h *PaymentController) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req CancelPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayment(p))
}

// RefundPayment handles POST /api/v1/payments/{id}/refund
func (h *PaymentController) RefundPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req RefundPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	refund, err := h.service.RequestRefund(r.Context(), id, *req.Amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromRefund(refund))
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if !view.Found {
		writeJSON(w, http.StatusNotFound, StatusResponse{Found: false})
		return
	}
	resp := FromView(*view.Payment)
	writeJSON(w, http.StatusOK, StatusResponse{Found: true, Payment: &resp})
}

// GetUserHistory handles GET /api/v1/users/{userID}/payments
func (h *PaymentController) GetUserHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := appPayment.HistoryOptions{Method: q.Get("method")}

	if s := q.Get("status"); s != "" {
		status := payment.PaymentStatus(s)
		if !status.Valid() {
			badRequest(w, "unknown status "+s, "invalid_status")
			return
		}
		opts.Status = &status
	}

	var err error
	if opts.StartDate, err = parseTime("start_date", q.Get("start_date")); err != nil {
		writeError(w, err)
		return
	}
	if opts.EndDate, err = parseTime("end_date", q.Get("end_date")); err != nil {
		writeError(w, err)
		return
	}
	if opts.Limit, err = parseInt("limit", q.Get("limit")); err != nil {
		writeError(w, err)
		return
	}
	if opts.Offset, err = parseInt("offset", q.Get("offset")); err != nil {
		writeError(w, err)
		return
	}

	page, err := h.service.GetUserHistory(r.Context(), chi.URLParam(r, "userID"), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromHistory(page))
}

// GetStatistics handles GET /api/v1/statistics
func (h *PaymentController) GetStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := appPayment.StatsOptions{UserID: q.Get("user_id")}

	var err error
	if opts.StartDate, err = parseTime("start_date", q.Get("start_date")); err != nil {
		writeError(w, err)
		return
	}
	if opts.EndDate, err = parseTime("end_date", q.Get("end_date")); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.service.GetStatistics(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromStatistics(report))
}
