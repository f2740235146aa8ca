// Package propagation spreads a confirmed categorization to unconfirmed
// transactions from the same merchant.
package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

// Limits on similarity matching.
const (
	KeyLength     = 20
	MaxCandidates = 100
)

// Result reports a propagation run.
type Result struct {
	SimilarFound int   `json:"similar_found"`
	Updated      int64 `json:"updated"`
}

// Propagator finds and updates transactions that share a merchant prefix.
type Propagator struct {
	store service.TransactionStore
}

// New creates a propagator over store.
func New(store service.TransactionStore) *Propagator {
	return &Propagator{store: store}
}

// Key returns the field and prefix used to find transactions similar to
// txn: the start of its code, or of its details when there is no code.
func Key(txn model.Transaction) (service.SimilarityField, string) {
	if code := strings.TrimSpace(txn.Code); code != "" {
		return service.SimilarByCode, truncate(code, KeyLength)
	}
	if details := strings.TrimSpace(txn.Details); details != "" {
		return service.SimilarByDetails, truncate(details, KeyLength)
	}
	return "", ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// FindSimilar returns up to MaxCandidates other transactions with the same
// merchant prefix. Confirmed rows are included only when includeCategorized
// is set.
func (p *Propagator) FindSimilar(ctx context.Context, txn model.Transaction, includeCategorized bool) ([]model.Transaction, error) {
	field, prefix := Key(txn)
	if prefix == "" {
		return nil, nil
	}

	similar, err := p.store.FindSimilarTransactions(ctx, service.SimilarityQuery{
		Field:            field,
		Prefix:           prefix,
		ExcludeID:        txn.ID,
		Limit:            MaxCandidates,
		IncludeConfirmed: includeCategorized,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find similar transactions: %w", err)
	}
	return similar, nil
}

// Propagate copies txn's category and classification onto similar
// unconfirmed transactions. It does nothing when txn has no category.
func (p *Propagator) Propagate(ctx context.Context, txn model.Transaction) (*Result, error) {
	if !txn.HasCategory() {
		return &Result{}, nil
	}

	similar, err := p.FindSimilar(ctx, txn, false)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		return &Result{}, nil
	}

	ids := make([]int64, len(similar))
	for i, s := range similar {
		ids[i] = s.ID
	}

	updated, err := p.store.BulkApplyAutomated(ctx, ids, txn.Classification, txn.CategoryID, model.SourceRule)
	if err != nil {
		return nil, fmt.Errorf("failed to propagate categorization: %w", err)
	}

	slog.Info("Propagated categorization",
		"transaction_id", txn.ID,
		"category_id", *txn.CategoryID,
		"similar_found", len(similar),
		"updated", updated)

	return &Result{SimilarFound: len(similar), Updated: updated}, nil
}
