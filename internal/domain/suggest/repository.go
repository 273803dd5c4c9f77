package suggest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StoredSuggestion is the persisted suggestion row. Category is empty when
// no tier of the engine produced a match; the review surface shows those as
// uncategorized.
type StoredSuggestion struct {
	TransactionID uuid.UUID
	UserID        uuid.UUID
	Category      string
	Merchant      string
	Type          string
	Amount        decimal.Decimal
	Confidence    float64
	Source        string
}

// Repository stores suggestions keyed by transaction ID.
type Repository interface {
	UpsertSuggestion(ctx context.Context, s StoredSuggestion) error
}

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertSuggestion(ctx context.Context, s StoredSuggestion) error {
	query := `
		INSERT INTO category_suggestions
			(transaction_id, user_id, category, merchant, type, amount, confidence, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (transaction_id) DO UPDATE
		SET category = EXCLUDED.category,
		    merchant = EXCLUDED.merchant,
		    type = EXCLUDED.type,
		    amount = EXCLUDED.amount,
		    confidence = EXCLUDED.confidence,
		    source = EXCLUDED.source,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		s.TransactionID, s.UserID, s.Category, s.Merchant, s.Type, s.Amount, s.Confidence, s.Source)
	if err != nil {
		return fmt.Errorf("upsert suggestion for %s: %w", s.TransactionID, err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
