// Package dynamo copies the stock movement ledger into a DynamoDB table for
// long term retention.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/yashrajoria/giftshop-backend/models"
	"go.uber.org/zap"
)

// batchSize is the BatchWriteItem ceiling.
const batchSize = 25

const maxUnprocessedRetries = 5

type BatchWriter interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type ddbMove struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	MoveID        string `dynamodbav:"move_id"`
	ProductID     string `dynamodbav:"product_id"`
	Type          string `dynamodbav:"type"`
	Qty           int    `dynamodbav:"qty"`
	DeltaStock    int    `dynamodbav:"delta_stock"`
	DeltaReserved int    `dynamodbav:"delta_reserved"`
	RefKind       string `dynamodbav:"ref_kind"`
	RefID         string `dynamodbav:"ref_id,omitempty"`
	Note          string `dynamodbav:"note,omitempty"`
	By            string `dynamodbav:"by,omitempty"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func toItem(m models.StockMove) ddbMove {
	created := m.CreatedAt.UTC().Format(time.RFC3339Nano)
	return ddbMove{
		PK:            "PRODUCT#" + m.ProductID,
		SK:            "MOVE#" + created + "#" + m.ID,
		MoveID:        m.ID,
		ProductID:     m.ProductID,
		Type:          string(m.Type),
		Qty:           m.Qty,
		DeltaStock:    m.DeltaStock,
		DeltaReserved: m.DeltaReserved,
		RefKind:       m.Ref.Kind,
		RefID:         m.Ref.ID,
		Note:          m.Note,
		By:            m.By,
		CreatedAt:     created,
	}
}

// MovementArchive buffers movements and writes them in batches. Items are
// keyed by product and creation time so rewriting a range is harmless.
type MovementArchive struct {
	client  BatchWriter
	table   string
	logger  *zap.Logger
	pending []types.WriteRequest
	written int
}

func NewMovementArchive(client BatchWriter, table string, logger *zap.Logger) *MovementArchive {
	return &MovementArchive{client: client, table: table, logger: logger}
}

// Add queues one movement and flushes when a batch is full.
func (a *MovementArchive) Add(ctx context.Context, m models.StockMove) error {
	item, err := attributevalue.MarshalMap(toItem(m))
	if err != nil {
		return fmt.Errorf("marshal stock move %s: %w", m.ID, err)
	}
	a.pending = append(a.pending, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	if len(a.pending) >= batchSize {
		return a.Flush(ctx)
	}
	return nil
}

// Flush writes whatever is queued, resubmitting unprocessed items.
func (a *MovementArchive) Flush(ctx context.Context) error {
	reqs := a.pending
	for attempt := 0; len(reqs) > 0; attempt++ {
		if attempt > maxUnprocessedRetries {
			return fmt.Errorf("dynamodb left %d stock moves unprocessed", len(reqs))
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*100) * time.Millisecond):
			}
		}

		out, err := a.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{a.table: reqs},
		})
		if err != nil {
			return fmt.Errorf("dynamodb BatchWriteItem failed: %w", err)
		}
		left := out.UnprocessedItems[a.table]
		a.written += len(reqs) - len(left)
		reqs = left
	}

	if len(a.pending) > 0 {
		a.logger.Debug("Archived stock moves", zap.Int("count", len(a.pending)), zap.String("table", a.table))
	}
	a.pending = nil
	return nil
}

// Written is the number of movements stored so far.
func (a *MovementArchive) Written() int { return a.written }

// TableName returns the configured table, defaulting when empty.
func TableName(name string) string {
	if name == "" {
		return "StockMoves"
	}
	return name
}
