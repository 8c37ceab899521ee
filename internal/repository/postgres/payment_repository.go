package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const paymentColumns = `id, order_id, customer_id, email, phone,
	amount, fee, total, currency, method, description,
	status, attempts, max_attempts, transaction_id, gateway_response,
	last_error, cancel_reason, created_at, updated_at, expires_at,
	refund_id, refund_amount, refund_reason, refund_status, refund_requested_at,
	refund_processed_at, refund_transaction_id, refund_error, version`

// PaymentRepository implements payment.Repository using PostgreSQL. The
// refund sub-record lives in nullable refund_* columns of the same row.
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository creates a new PaymentRepository. db is usually a *pgxpool.Pool.
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	args, err := paymentArgs(p)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)`,
		args...,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("payment %s already exists", p.ID)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by its ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// Update overwrites every mutable column of an existing payment, provided
// the row is still at p.Version.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	args, err := paymentArgs(p)
	if err != nil {
		return err
	}
	// id, status..cancel_reason, updated_at..refund_error, expected version
	updateArgs := append([]any{args[0]}, args[11:18]...)
	updateArgs = append(updateArgs, args[19:29]...)
	updateArgs = append(updateArgs, p.Version)

	tag, err := r.db.Exec(ctx,
		`UPDATE payments SET
		  status=$2, attempts=$3, max_attempts=$4, transaction_id=$5, gateway_response=$6,
		  last_error=$7, cancel_reason=$8, updated_at=$9, expires_at=$10,
		  refund_id=$11, refund_amount=$12, refund_reason=$13, refund_status=$14, refund_requested_at=$15,
		  refund_processed_at=$16, refund_transaction_id=$17, refund_error=$18,
		  version=version+1
		 WHERE id=$1 AND version=$19`,
		updateArgs...,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.updateConflict(ctx, p)
	}
	p.Version++
	return nil
}

// updateConflict explains why an update matched no row.
func (r *PaymentRepository) updateConflict(ctx context.Context, p *payment.Payment) error {
	var stored int
	err := r.db.QueryRow(ctx, `SELECT version FROM payments WHERE id = $1`, p.ID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return domainErrors.ErrPaymentNotFound
	}
	if err != nil {
		return fmt.Errorf("check payment version: %w", err)
	}
	return fmt.Errorf("payment %s at version %d, have %d: %w", p.ID, stored, p.Version, domainErrors.ErrConcurrentUpdate)
}

// List lists payments matching f, newest first.
func (r *PaymentRepository) List(ctx context.Context, f payment.ListFilter) ([]*payment.Payment, error) {
	query, args := listQuery(`SELECT `+paymentColumns+` FROM payments`, f, true)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// Count counts payments matching f, ignoring paging.
func (r *PaymentRepository) Count(ctx context.Context, f payment.ListFilter) (int, error) {
	query, args := listQuery(`SELECT COUNT(*) FROM payments`, f, false)

	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return n, nil
}

// listQuery appends the filter predicates to base. Ordering and paging are
// only added when paged is set.
func listQuery(base string, f payment.ListFilter, paged bool) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.Method != "" {
		add("method = $%d", f.Method)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}
	if f.ExpiresBefore != nil {
		add("expires_at < $%d", *f.ExpiresBefore)
	}

	var b strings.Builder
	b.WriteString(base)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if paged {
		b.WriteString(" ORDER BY created_at DESC, id ASC")
		if f.Limit > 0 {
			args = append(args, f.Limit)
			fmt.Fprintf(&b, " LIMIT $%d", len(args))
		}
		if f.Offset > 0 {
			args = append(args, f.Offset)
			fmt.Fprintf(&b, " OFFSET $%d", len(args))
		}
	}
	return b.String(), args
}

// paymentArgs renders p in paymentColumns order.
func paymentArgs(p *payment.Payment) ([]any, error) {
	response, err := json.Marshal(p.GatewayResponse)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway response: %w", err)
	}

	var (
		refundID          *uuid.UUID
		refundAmount      *string
		refundReason      *string
		refundStatus      *string
		refundRequestedAt *time.Time
		refundProcessedAt *time.Time
		refundTxID        *string
		refundErr         *string
	)
	if rf := p.Refund; rf != nil {
		refundID = &rf.ID
		refundAmount = nullableNumeric(&rf.Amount)
		refundReason = &rf.Reason
		status := string(rf.Status)
		refundStatus = &status
		refundRequestedAt = &rf.RequestedAt
		refundProcessedAt = rf.ProcessedAt
		refundTxID = rf.TransactionID
		refundErr = rf.Error
	}

	return []any{
		p.ID, p.OrderID, p.CustomerID, p.Email, p.Phone,
		numericString(p.Amount), numericString(p.Fee), numericString(p.Total), p.Currency, p.Method, p.Description,
		string(p.Status), p.Attempts, p.MaxAttempts, p.TransactionID, response,
		p.LastError, p.CancelReason, p.CreatedAt, p.UpdatedAt, p.ExpiresAt,
		refundID, refundAmount, refundReason, refundStatus, refundRequestedAt,
		refundProcessedAt, refundTxID, refundErr, p.Version,
	}, nil
}

// scanPayment scans one row selected with paymentColumns.
func scanPayment(s scanner) (*payment.Payment, error) {
	p := &payment.Payment{}
	var (
		amount, fee, total string
		status             string
		response           []byte

		refundID          *uuid.UUID
		refundAmount      *string
		refundReason      *string
		refundStatus      *string
		refundRequestedAt *time.Time
		refundProcessedAt *time.Time
		refundTxID        *string
		refundErr         *string
	)
	err := s.Scan(
		&p.ID, &p.OrderID, &p.CustomerID, &p.Email, &p.Phone,
		&amount, &fee, &total, &p.Currency, &p.Method, &p.Description,
		&status, &p.Attempts, &p.MaxAttempts, &p.TransactionID, &response,
		&p.LastError, &p.CancelReason, &p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt,
		&refundID, &refundAmount, &refundReason, &refundStatus, &refundRequestedAt,
		&refundProcessedAt, &refundTxID, &refundErr, &p.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	if p.Amount, err = parseNumeric(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if p.Fee, err = parseNumeric(fee); err != nil {
		return nil, fmt.Errorf("parse fee: %w", err)
	}
	if p.Total, err = parseNumeric(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	p.Status = payment.PaymentStatus(status)

	p.GatewayResponse = make(map[string]any)
	if len(response) > 0 {
		if err := json.Unmarshal(response, &p.GatewayResponse); err != nil {
			return nil, fmt.Errorf("unmarshal gateway response: %w", err)
		}
		if p.GatewayResponse == nil {
			p.GatewayResponse = make(map[string]any)
		}
	}

	if refundID != nil {
		rf := &payment.Refund{
			ID:            *refundID,
			ProcessedAt:   refundProcessedAt,
			TransactionID: refundTxID,
			Error:         refundErr,
		}
		if refundAmount != nil {
			if rf.Amount, err = parseNumeric(*refundAmount); err != nil {
				return nil, fmt.Errorf("parse refund amount: %w", err)
			}
		}
		if refundReason != nil {
			rf.Reason = *refundReason
		}
		if refundStatus != nil {
			rf.Status = payment.RefundStatus(*refundStatus)
		}
		if refundRequestedAt != nil {
			rf.RequestedAt = *refundRequestedAt
		}
		p.Refund = rf
	}
	return p, nil
}
