package payment

import (
	"fmt"
	"slices"
	"strings"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/method"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CreateRequest is the caller's input for a new payment. Amount is a pointer
// so that a missing amount can be told apart from zero.
type CreateRequest struct {
	OrderID     string
	CustomerID  string
	Email       string
	Phone       string
	Amount      *decimal.Decimal
	Currency    string
	Method      string
	Description string
}

// ValidationResult lists every rule the request broke.
type ValidationResult struct {
	Valid  bool
	Errors []domainErrors.FieldError
}

// Err converts the result into a *ValidationError, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return domainErrors.NewValidationErrors(r.Errors)
}

// Validator checks create requests against the catalog and global limits.
type Validator struct {
	catalog    *method.Catalog
	cfg        Config
	currencies []string
	rounding   RoundingPolicy
	validate   *validator.Validate
}

// NewValidator builds a Validator. A nil rounding uses DefaultRounding.
func NewValidator(catalog *method.Catalog, cfg Config, rounding RoundingPolicy) *Validator {
	if rounding == nil {
		rounding = DefaultRounding()
	}
	currencies := make([]string, len(cfg.SupportedCurrencies))
	for i, c := range cfg.SupportedCurrencies {
		currencies[i] = strings.ToUpper(c)
	}
	return &Validator{
		catalog:    catalog,
		cfg:        cfg,
		currencies: currencies,
		rounding:   rounding,
		validate:   validator.New(),
	}
}

// Validate runs every rule and collects one error per failure.
func (v *Validator) Validate(req CreateRequest) ValidationResult {
	var errs []domainErrors.FieldError
	add := func(field, msg string) {
		errs = append(errs, domainErrors.FieldError{Field: field, Message: msg})
	}

	if strings.TrimSpace(req.OrderID) == "" {
		add("order_id", "is required")
	}
	if req.Amount == nil {
		add("amount", "is required")
	}
	if strings.TrimSpace(req.Method) == "" {
		add("method", "is required")
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		add("customer_id", "is required")
	}

	if req.Amount != nil {
		switch {
		case !req.Amount.IsPositive():
			add("amount", "must be greater than 0")
		case req.Amount.LessThan(v.cfg.MinAmount):
			add("amount", "must be at least "+v.cfg.MinAmount.String())
		case !v.cfg.MaxAmount.IsZero() && req.Amount.GreaterThan(v.cfg.MaxAmount):
			add("amount", "must be at most "+v.cfg.MaxAmount.String())
		}
	}

	var m *method.Method
	if req.Method != "" {
		found, err := v.catalog.Get(req.Method)
		switch {
		case err != nil:
			add("method", "unknown payment method "+req.Method)
		case !found.Enabled:
			add("method", "payment method "+req.Method+" is disabled")
		default:
			m = &found
		}
	}

	currency := v.currency(req.Currency)
	if !slices.Contains(v.currencies, currency) {
		add("currency", "currency "+currency+" is not supported")
	} else if m != nil && !m.Accepts(currency) {
		add("currency", "currency "+currency+" is not accepted by "+m.ID)
	}

	if req.Amount != nil && req.Amount.IsPositive() && !fitsCurrency(v.rounding, *req.Amount, currency) {
		add("amount", fmt.Sprintf("must have at most %d decimal places for %s", v.rounding.Places(currency), currency))
	}

	if m != nil && req.Amount != nil && req.Amount.IsPositive() && !m.InBounds(*req.Amount) {
		add("amount", "must be between "+m.MinAmount.String()+" and "+m.MaxAmount.String()+" for "+m.ID)
	}

	if req.Email != "" {
		if err := v.validate.Var(req.Email, "email"); err != nil {
			add("email", "invalid email format")
		}
	}
	if req.Phone != "" {
		if err := v.validate.Var(NormalizePhone(req.Phone), "e164"); err != nil {
			add("phone", "invalid phone format")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (v *Validator) currency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return v.cfg.DefaultCurrency
	}
	return c
}

// NormalizePhone drops common separators and prefixes "+" so the number can be
// checked as E.164.
func NormalizePhone(phone string) string {
	phone = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}
