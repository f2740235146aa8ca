package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/google/uuid"
)

// importChunkSize is the number of rows saved per store transaction.
const importChunkSize = 100

// ImportResult reports one import run.
type ImportResult struct {
	BatchID  string `json:"batch_id"`
	Parsed   int    `json:"parsed"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
}

// Importer saves parsed statements into an account. Rows whose FITID was
// already imported into the account are skipped by the store.
type Importer struct {
	parser *Parser
	store  service.TransactionStore
	// Progress, when set, is called after each saved chunk with the number
	// of rows processed so far.
	Progress func(done, total int)
}

// NewImporter creates an importer backed by store.
func NewImporter(store service.TransactionStore) *Importer {
	return &Importer{parser: NewParser(), store: store}
}

// Import parses r and saves every transaction into accountID under a new
// batch id.
func (i *Importer) Import(ctx context.Context, r io.Reader, accountID int64) (*ImportResult, error) {
	txns, err := i.parser.ParseFile(ctx, r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{BatchID: uuid.NewString(), Parsed: len(txns)}
	for idx := range txns {
		txns[idx].AccountID = accountID
		txns[idx].ImportBatchID = result.BatchID
		txns[idx].Classification = model.ClassificationUnclassified
		txns[idx].Source = model.SourcePending
	}

	for start := 0; start < len(txns); start += importChunkSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := min(start+importChunkSize, len(txns))
		inserted, err := i.store.SaveTransactions(ctx, txns[start:end])
		if err != nil {
			return result, fmt.Errorf("failed to save transactions: %w", err)
		}
		result.Inserted += inserted

		if i.Progress != nil {
			i.Progress(end, len(txns))
		}
	}
	result.Skipped = result.Parsed - result.Inserted

	slog.Info("Imported OFX file",
		"account_id", accountID,
		"batch_id", result.BatchID,
		"parsed", result.Parsed,
		"inserted", result.Inserted,
		"skipped", result.Skipped)
	return result, nil
}
