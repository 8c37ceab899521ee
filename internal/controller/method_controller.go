package controller

import (
	"net/http"
	"strings"

	"github.com/cassiomorais/payorders/internal/domain/method"
	"github.com/shopspring/decimal"
)

type MethodController struct {
	catalog *method.Catalog
}

func NewMethodController(catalog *method.Catalog) *MethodController {
	return &MethodController{catalog: catalog}
}

// ListMethods handles GET /api/v1/methods. With currency and amount it
// returns what can take that payment; otherwise every enabled method,
// optionally narrowed to a currency.
func (h *MethodController) ListMethods(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(r.URL.Query().Get("currency"))
	rawAmount := r.URL.Query().Get("amount")

	var methods []method.Method
	if rawAmount != "" {
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			badRequest(w, "invalid amount", "invalid_amount")
			return
		}
		if currency == "" {
			badRequest(w, "currency is required with amount", "invalid_input")
			return
		}
		methods = h.catalog.ListAvailable(currency, amount)
	} else {
		for _, m := range h.catalog.All() {
			if m.Enabled && (currency == "" || m.Accepts(currency)) {
				methods = append(methods, m)
			}
		}
	}

	resp := make([]MethodResponse, 0, len(methods))
	for _, m := range methods {
		resp = append(resp, FromMethod(m))
	}
	writeJSON(w, http.StatusOK, resp)
}
