package dynamo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/giftshop-backend/models"
	"go.uber.org/zap"
)

type fakeWriter struct {
	calls     [][]types.WriteRequest
	unprocess int
	err       error
}

func (f *fakeWriter) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	reqs := in.RequestItems["StockMoves"]
	f.calls = append(f.calls, reqs)

	out := &dynamodb.BatchWriteItemOutput{}
	if f.unprocess > 0 {
		n := min(f.unprocess, len(reqs))
		f.unprocess -= n
		out.UnprocessedItems = map[string][]types.WriteRequest{"StockMoves": reqs[:n]}
	}
	return out, nil
}

func move(i int) models.StockMove {
	return models.StockMove{
		ID:         fmt.Sprintf("m%02d", i),
		ProductID:  "p1",
		Type:       models.MoveIssue,
		Qty:        1,
		DeltaStock: -1,
		Ref:        models.MoveRef{Kind: models.RefKindOrder, ID: "o1"},
		CreatedAt:  time.Date(2024, 5, 1, 10, 0, i, 0, time.UTC),
	}
}

func TestArchive_BatchesOfTwentyFive(t *testing.T) {
	w := &fakeWriter{}
	a := NewMovementArchive(w, "StockMoves", zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		require.NoError(t, a.Add(ctx, move(i)))
	}
	require.Len(t, w.calls, 1)
	assert.Len(t, w.calls[0], 25)

	require.NoError(t, a.Flush(ctx))
	require.Len(t, w.calls, 2)
	assert.Len(t, w.calls[1], 5)
	assert.Equal(t, 30, a.Written())

	require.NoError(t, a.Flush(ctx))
	assert.Len(t, w.calls, 2)
}

func TestArchive_ItemKeys(t *testing.T) {
	w := &fakeWriter{}
	a := NewMovementArchive(w, "StockMoves", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, a.Add(ctx, move(3)))
	require.NoError(t, a.Flush(ctx))

	var item ddbMove
	require.NoError(t, attributevalue.UnmarshalMap(w.calls[0][0].PutRequest.Item, &item))
	assert.Equal(t, "PRODUCT#p1", item.PK)
	assert.Equal(t, "MOVE#2024-05-01T10:00:03Z#m03", item.SK)
	assert.Equal(t, "order", item.RefKind)
	assert.Equal(t, -1, item.DeltaStock)
}

func TestArchive_RetriesUnprocessed(t *testing.T) {
	w := &fakeWriter{unprocess: 2}
	a := NewMovementArchive(w, "StockMoves", zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Add(ctx, move(i)))
	}
	require.NoError(t, a.Flush(ctx))

	require.Len(t, w.calls, 2)
	assert.Len(t, w.calls[1], 2)
	assert.Equal(t, 3, a.Written())
}

func TestArchive_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("throttled")}
	a := NewMovementArchive(w, "StockMoves", zap.NewNop())

	require.NoError(t, a.Add(context.Background(), move(1)))
	assert.ErrorContains(t, a.Flush(context.Background()), "throttled")
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "StockMoves", TableName(""))
	assert.Equal(t, "Archive", TableName("Archive"))
}
