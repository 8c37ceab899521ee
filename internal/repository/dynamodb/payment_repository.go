package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/google/uuid"
)

// CustomerIndex is the global secondary index used for per-customer history.
const CustomerIndex = "customer_id-created_at-index"

// API is the subset of the DynamoDB client the repository needs.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// PaymentRepository stores payments in a single DynamoDB table keyed by id.
type PaymentRepository struct {
	client API
	table  string
}

func NewPaymentRepository(client API, table string) *PaymentRepository {
	return &PaymentRepository{client: client, table: table}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	err := r.put(ctx, p, &dynamodb.PutItemInput{
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id.String()},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if out.Item == nil {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return decode(out.Item)
}

// Update replaces the stored item when its version still equals p.Version.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	next := *p
	next.Version = p.Version + 1
	err := r.put(ctx, &next, &dynamodb.PutItemInput{
		ConditionExpression:      aws.String("attribute_exists(#id) AND #version = :version"),
		ExpressionAttributeNames: map[string]string{"#id": "id", "#version": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: strconv.Itoa(p.Version)},
		},
	})
	if isConditionFailed(err) {
		return r.updateConflict(ctx, p)
	}
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	p.Version = next.Version
	return nil
}

// updateConflict tells a missing item from a stale version.
func (r *PaymentRepository) updateConflict(ctx context.Context, p *payment.Payment) error {
	stored, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("payment %s at version %d, have %d: %w", p.ID, stored.Version, p.Version, domainErrors.ErrConcurrentUpdate)
}

// List returns matches newest first, ties broken by id.
func (r *PaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	matches, err := r.match(ctx, filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return []*payment.Payment{}, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (r *PaymentRepository) Count(ctx context.Context, filter payment.ListFilter) (int, error) {
	matches, err := r.match(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// put writes p with the condition carried by in.
func (r *PaymentRepository) put(ctx context.Context, p *payment.Payment, in *dynamodb.PutItemInput) error {
	item, err := attributevalue.MarshalMap(toItem(p))
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}
	in.TableName = aws.String(r.table)
	in.Item = item
	_, err = r.client.PutItem(ctx, in)
	return err
}

// match reads every candidate page and applies the filter in memory. A
// customer filter narrows the read to the customer index.
func (r *PaymentRepository) match(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	var (
		out     = make([]*payment.Payment, 0)
		startAt map[string]types.AttributeValue
	)
	for {
		items, next, err := r.page(ctx, filter.CustomerID, startAt)
		if err != nil {
			return nil, err
		}
		for _, raw := range items {
			p, err := decode(raw)
			if err != nil {
				return nil, err
			}
			if filter.Matches(p) {
				out = append(out, p)
			}
		}
		if len(next) == 0 {
			return out, nil
		}
		startAt = next
	}
}

func (r *PaymentRepository) page(ctx context.Context, customerID string, startAt map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	if customerID != "" {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.table),
			IndexName:              aws.String(CustomerIndex),
			KeyConditionExpression: aws.String("customer_id = :customer_id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":customer_id": &types.AttributeValueMemberS{Value: customerID},
			},
			ExclusiveStartKey: startAt,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query payments: %w", err)
		}
		return out.Items, out.LastEvaluatedKey, nil
	}

	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:         aws.String(r.table),
		ExclusiveStartKey: startAt,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan payments: %w", err)
	}
	return out.Items, out.LastEvaluatedKey, nil
}

func decode(raw map[string]types.AttributeValue) (*payment.Payment, error) {
	var it paymentItem
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return fromItem(it)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
