package suggest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bank-import/internal/queue"
	"github.com/FACorreiaa/bank-import/pkg/retry"
)

type fakeRepo struct {
	upserts []StoredSuggestion
}

func (f *fakeRepo) UpsertSuggestion(_ context.Context, s StoredSuggestion) error {
	f.upserts = append(f.upserts, s)
	return nil
}

func testService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	engine, err := NewEngine(DefaultCatalog())
	require.NoError(t, err)
	repo := &fakeRepo{}
	return NewService(repo, engine, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func message(t *testing.T, item queue.CategoryItem) queue.Message {
	t.Helper()
	payload, err := queue.Encode(item)
	require.NoError(t, err)
	return queue.Message{ID: uuid.New(), Topic: queue.TopicCategorySuggestion, Payload: payload, Attempts: 1}
}

func TestHandleSuggestion(t *testing.T) {
	t.Run("stores a categorized suggestion", func(t *testing.T) {
		svc, repo := testService(t)
		item := queue.CategoryItem{
			TransactionID: uuid.New(),
			UserID:        uuid.New(),
			Description:   "PAGO A NETFLIX",
			Amount:        "44900",
			Type:          "EXPENSE",
		}

		require.NoError(t, svc.HandleSuggestion(context.Background(), message(t, item)))

		require.Len(t, repo.upserts, 1)
		stored := repo.upserts[0]
		assert.Equal(t, item.TransactionID, stored.TransactionID)
		assert.Equal(t, "Subscriptions", stored.Category)
		assert.Equal(t, "Netflix", stored.Merchant, "merchant derived from description")
		assert.Equal(t, "44900", stored.Amount.String())
	})

	t.Run("keeps the extractor merchant when present", func(t *testing.T) {
		svc, repo := testService(t)
		item := queue.CategoryItem{
			TransactionID: uuid.New(),
			UserID:        uuid.New(),
			Description:   "COMPRA EN EXITO",
			Merchant:      "Exito",
			Amount:        "120000",
			Type:          "EXPENSE",
		}

		require.NoError(t, svc.HandleSuggestion(context.Background(), message(t, item)))
		require.Len(t, repo.upserts, 1)
		assert.Equal(t, "Exito", repo.upserts[0].Merchant)
	})

	t.Run("stores uncategorized rows for unmatched descriptions", func(t *testing.T) {
		svc, repo := testService(t)
		item := queue.CategoryItem{
			TransactionID: uuid.New(),
			UserID:        uuid.New(),
			Description:   "zzqx wvvk",
			Amount:        "100",
			Type:          "EXPENSE",
		}

		require.NoError(t, svc.HandleSuggestion(context.Background(), message(t, item)))
		require.Len(t, repo.upserts, 1)
		assert.Empty(t, repo.upserts[0].Category)
		assert.Zero(t, repo.upserts[0].Confidence)
	})

	t.Run("malformed payloads are not retried", func(t *testing.T) {
		svc, repo := testService(t)
		msg := queue.Message{ID: uuid.New(), Topic: queue.TopicCategorySuggestion, Payload: []byte("not json"), Attempts: 1}

		err := svc.HandleSuggestion(context.Background(), msg)

		var perm *retry.Permanent
		require.ErrorAs(t, err, &perm)
		assert.Empty(t, repo.upserts)
	})

	t.Run("redelivery overwrites by transaction id", func(t *testing.T) {
		svc, repo := testService(t)
		item := queue.CategoryItem{
			TransactionID: uuid.New(),
			UserID:        uuid.New(),
			Description:   "UBER TRIP",
			Amount:        "25000",
			Type:          "EXPENSE",
		}

		require.NoError(t, svc.HandleSuggestion(context.Background(), message(t, item)))
		require.NoError(t, svc.HandleSuggestion(context.Background(), message(t, item)))

		require.Len(t, repo.upserts, 2)
		assert.Equal(t, repo.upserts[0].TransactionID, repo.upserts[1].TransactionID)
		assert.Equal(t, repo.upserts[0].Category, repo.upserts[1].Category)
	})
}
