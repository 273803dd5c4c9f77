package suggest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bank-import/internal/queue"
	"github.com/FACorreiaa/bank-import/pkg/retry"
)

// Service consumes category-suggestion work items. Deliveries are
// at-least-once; storage is keyed by transaction ID so replays overwrite
// rather than duplicate.
type Service struct {
	repo   Repository
	engine *Engine
	logger *slog.Logger
}

func NewService(repo Repository, engine *Engine, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, logger: logger}
}

// HandleSuggestion is the queue handler for the category-suggestion topic.
func (s *Service) HandleSuggestion(ctx context.Context, msg queue.Message) error {
	var item queue.CategoryItem
	if err := queue.Decode(&msg, &item); err != nil {
		return &retry.Permanent{Err: err}
	}

	merchant := item.Merchant
	if merchant == "" {
		merchant = CleanDescription(item.Description)
	}

	record := StoredSuggestion{
		TransactionID: item.TransactionID,
		UserID:        item.UserID,
		Merchant:      merchant,
		Type:          item.Type,
	}
	if amount, err := decimal.NewFromString(item.Amount); err == nil {
		record.Amount = amount
	}

	if suggestion, ok := s.engine.Suggest(item.Description); ok {
		record.Category = suggestion.Category
		record.Confidence = suggestion.Confidence
		record.Source = suggestion.Source
	}

	if err := s.repo.UpsertSuggestion(ctx, record); err != nil {
		return err
	}

	s.logger.Debug("suggestion stored",
		"transaction_id", item.TransactionID,
		"category", record.Category,
		"source", record.Source)
	return nil
}

// CleanDescription tidies a raw bank description into a display merchant:
// known purchase prefixes and trailing reference numbers are stripped and
// the rest is title-cased.
func CleanDescription(description string) string {
	prefixes := []string{
		"COMPRAS C.DEB ",
		"COMPRA EN ",
		"COMPRA ",
		"PAGO A ",
		"PAGO EN ",
		"PURCHASE ",
		"POS ",
		"DEBIT CARD ",
		"PAGAMENTO ",
		"PAG*",
	}

	cleaned := strings.TrimSpace(description)
	upper := strings.ToUpper(cleaned)
	for _, prefix := range prefixes {
		if strings.HasPrefix(upper, prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
			break
		}
	}

	if idx := strings.LastIndexAny(cleaned, "*#"); idx > 0 {
		ref := cleaned[idx+1:]
		if len(ref) <= 6 && isNumeric(ref) {
			cleaned = strings.TrimSpace(cleaned[:idx])
		}
	}

	return toTitleCase(cleaned)
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(string(word[0])) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
