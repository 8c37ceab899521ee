package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxBodySize = 1 << 20

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: an in-progress error also matches ErrInvalidStateTransition,
// and gateway transport failures also match ErrGatewayFailed.
var errorMappings = []errorMapping{
	{domainErrors.ErrPaymentNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrMethodNotFound, http.StatusNotFound, "method_not_found"},
	{domainErrors.ErrOperationInProgress, http.StatusConflict, "operation_in_progress"},
	{domainErrors.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state"},
	{domainErrors.ErrPaymentExpired, http.StatusGone, "payment_expired"},
	{domainErrors.ErrDuplicateRefund, http.StatusConflict, "duplicate_refund"},
	{domainErrors.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{domainErrors.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
	{domainErrors.ErrGatewayTimeout, http.StatusGatewayTimeout, "gateway_timeout"},
	{domainErrors.ErrGatewayFailed, http.StatusPaymentRequired, "gateway_error"},
	{domainErrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		for _, f := range validationErr.Fields {
			resp.Details = append(resp.Details, FieldDetail{Field: f.Field, Message: f.Message})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Error = domainErr.Message
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	if domainErr != nil {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func badRequest(w http.ResponseWriter, msg, code string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: code})
}

// decodeJSON reads an optional JSON body. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domainErrors.NewDomainError("invalid_input", "invalid JSON: "+err.Error(), domainErrors.ErrInvalidInput)
	}
	return nil
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]domainErrors.FieldError, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, domainErrors.FieldError{
					Field:   fe.Field(),
					Message: fe.Tag() + " validation failed",
				})
			}
			return domainErrors.NewValidationErrors(fields)
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid payment id", "invalid_id")
		return uuid.Nil, false
	}
	return id, true
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, domainErrors.NewValidationError(field, "must be RFC 3339 or YYYY-MM-DD")
}

func parseInt(field, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domainErrors.NewValidationError(field, "must be a non-negative integer")
	}
	return n, nil
}
