package method

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// Catalog is the registry of accepted payment methods.
type Catalog struct {
	mu      sync.RWMutex
	methods map[string]Method
}

// NewCatalog creates a catalog holding the given methods.
func NewCatalog(methods ...Method) (*Catalog, error) {
	c := &Catalog{methods: make(map[string]Method)}
	for _, m := range methods {
		if err := c.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a method. Currency codes are normalized to upper case.
func (c *Catalog) Register(m Method) error {
	if err := m.validate(); err != nil {
		return err
	}

	currencies := make([]string, len(m.Currencies))
	for i, cur := range m.Currencies {
		currencies[i] = strings.ToUpper(cur)
	}
	m.Currencies = currencies

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.methods[m.ID]; exists {
		return fmt.Errorf("register %q: %w", m.ID, errors.ErrMethodExists)
	}
	c.methods[m.ID] = m
	return nil
}

// Get returns the method with the given id.
func (c *Catalog) Get(id string) (Method, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.methods[id]
	if !ok {
		return Method{}, fmt.Errorf("method %q: %w", id, errors.ErrMethodNotFound)
	}
	return m, nil
}

// ListAvailable returns enabled methods accepting currency and amount, sorted by id.
func (c *Catalog) ListAvailable(currency string, amount decimal.Decimal) []Method {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Method
	for _, m := range c.methods {
		if m.Enabled && m.Accepts(currency) && m.InBounds(amount) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every registered method sorted by id.
func (c *Catalog) All() []Method {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Method, 0, len(c.methods))
	for _, m := range c.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultCatalog returns the methods the service accepts out of the box.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		Method{
			ID:         "card",
			Name:       "Credit/Debit Card",
			Enabled:    true,
			MinAmount:  decimal.RequireFromString("0.50"),
			MaxAmount:  decimal.NewFromInt(50000),
			FeeRate:    decimal.RequireFromString("0.029"),
			Currencies: []string{"USD", "EUR", "GBP", "BRL", "JPY"},
		},
		Method{
			ID:         "paypal",
			Name:       "PayPal",
			Enabled:    true,
			MinAmount:  decimal.NewFromInt(1),
			MaxAmount:  decimal.NewFromInt(10000),
			FeeRate:    decimal.RequireFromString("0.034"),
			Currencies: []string{"USD", "EUR", "GBP"},
		},
		Method{
			ID:         "bank_transfer",
			Name:       "Bank Transfer",
			Enabled:    true,
			MinAmount:  decimal.NewFromInt(10),
			MaxAmount:  decimal.NewFromInt(100000),
			FeeRate:    decimal.RequireFromString("0.006"),
			Currencies: []string{"USD", "EUR", "BRL"},
		},
		Method{
			ID:         "pix",
			Name:       "Pix",
			Enabled:    true,
			MinAmount:  decimal.RequireFromString("0.01"),
			MaxAmount:  decimal.NewFromInt(20000),
			FeeRate:    decimal.Zero,
			Currencies: []string{"BRL"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}
