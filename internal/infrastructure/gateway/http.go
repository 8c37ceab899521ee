package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/cassiomorais/payorders/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPConfig configures the HTTP gateway client.
type HTTPConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   retry.Config
}

// HTTPGateway talks JSON to a remote payment network. Transport errors and
// 5xx responses are retried within a single attempt; 4xx responses are declines.
type HTTPGateway struct {
	cfg    HTTPConfig
	client *http.Client
	logger zerolog.Logger
}

func NewHTTPGateway(cfg HTTPConfig, logger zerolog.Logger) *HTTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 1
	}
	return &HTTPGateway{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "gateway").Str("gateway", cfg.Name).Logger(),
	}
}

func (g *HTTPGateway) Name() string { return g.cfg.Name }

type chargeBody struct {
	PaymentID   string         `json:"payment_id"`
	OrderID     string         `json:"order_id"`
	Amount      string         `json:"amount"`
	Currency    string         `json:"currency"`
	Method      string         `json:"method"`
	Token       string         `json:"token,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Description string         `json:"description,omitempty"`
}

type refundBody struct {
	PaymentID     string `json:"payment_id"`
	RefundID      string `json:"refund_id"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason,omitempty"`
}

type gatewayReply struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

// ChargeKey is the Idempotency-Key for a charge attempt. Transport retries
// inside one attempt share it; a new attempt after a decline gets a new one.
func ChargeKey(p *payment.Payment) string {
	return p.ID.String() + ":" + strconv.Itoa(p.Attempts)
}

// formatAmount renders amount with exactly the currency's minor units.
func formatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(payment.MinorUnits(currency))
}

func (g *HTTPGateway) AttemptCharge(ctx context.Context, p *payment.Payment, details ChargeDetails) (*Result, error) {
	return g.post(ctx, "/v1/charges", ChargeKey(p), chargeBody{
		PaymentID:   p.ID.String(),
		OrderID:     p.OrderID,
		Amount:      formatAmount(p.Total, p.Currency),
		Currency:    p.Currency,
		Method:      p.Method,
		Token:       details.Token,
		Metadata:    details.Metadata,
		Description: p.Description,
	})
}

func (g *HTTPGateway) AttemptRefund(ctx context.Context, p *payment.Payment, req RefundRequest) (*Result, error) {
	return g.post(ctx, "/v1/refunds", req.RefundID, refundBody{
		PaymentID:     p.ID.String(),
		RefundID:      req.RefundID,
		TransactionID: req.TransactionID,
		Amount:        formatAmount(req.Amount, req.Currency),
		Currency:      req.Currency,
		Reason:        req.Reason,
	})
}

func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, body any) (*Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	cfg := g.cfg.Retry
	cfg.RetryIf = func(err error) bool {
		return !errors.Is(err, domainErrors.ErrGatewayRejected)
	}
	cfg.OnRetry = func(n uint, err error) {
		g.logger.Warn().Err(err).Uint("retry", n+1).Str("path", path).Msg("gateway call failed, retrying")
	}

	var raw map[string]any
	reply, err := retry.DoWithResult(ctx, cfg, func() (*gatewayReply, error) {
		r, body, callErr := g.do(ctx, path, idempotencyKey, payload)
		if body != nil {
			raw = body
		}
		return r, callErr
	})

	res := &Result{Response: raw}
	if res.Response == nil {
		res.Response = make(map[string]any)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return res, fmt.Errorf("%s: %w", g.cfg.Name, domainErrors.ErrGatewayTimeout)
		}
		return res, err
	}
	res.TransactionID = reply.TransactionID
	return res, nil
}

func (g *HTTPGateway) do(ctx context.Context, path, idempotencyKey string, payload []byte) (*gatewayReply, map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(g.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w: %w", g.cfg.Name, domainErrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: read response: %w", g.cfg.Name, err)
	}

	var raw map[string]any
	var reply gatewayReply
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, nil, fmt.Errorf("%s: decode response: %w", g.cfg.Name, err)
		}
		_ = json.Unmarshal(data, &reply)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, raw, fmt.Errorf("%s: upstream status %d: %w", g.cfg.Name, resp.StatusCode, domainErrors.ErrGatewayUnavailable)
	case resp.StatusCode >= 400 || reply.Status == "declined" || reply.Status == "failed":
		msg := reply.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return &reply, raw, fmt.Errorf("%s: %s: %w", g.cfg.Name, msg, domainErrors.ErrGatewayRejected)
	}
	return &reply, raw, nil
}
