package ml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

// Classifier defaults.
const (
	DefaultBlobName      = "category_model"
	DefaultMinSamples    = 20
	DefaultMinConfidence = 0.7
	maxFolds             = 5
)

// Config configures training.
type Config struct {
	BlobName    string
	Forest      ForestConfig
	MaxFeatures int
	MinDF       int
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() Config {
	return Config{
		BlobName:    DefaultBlobName,
		Forest:      DefaultForestConfig(),
		MaxFeatures: DefaultMaxFeatures,
		MinDF:       DefaultMinDF,
	}
}

// TrainResult reports the outcome of a training run.
type TrainResult struct {
	Error      string  `json:"error,omitempty"`
	Samples    int     `json:"samples"`
	Categories int     `json:"categories"`
	Accuracy   float64 `json:"accuracy"`
	Success    bool    `json:"success"`
}

// AutoResult reports an auto-categorization run.
type AutoResult struct {
	Processed   int `json:"processed"`
	Categorized int `json:"categorized"`
}

// Info describes the loaded model.
type Info struct {
	TrainedAt  time.Time `json:"trained_at"`
	Samples    int       `json:"samples"`
	Categories int       `json:"categories"`
	Features   int       `json:"features"`
	Accuracy   float64   `json:"accuracy"`
}

// Classifier trains, persists and serves the statistical model. The loaded
// model is replaced only after a new one has been saved.
type Classifier struct {
	transactions service.TransactionStore
	blobs        service.ModelBlobStore
	model        *Model
	config       Config
	mu           sync.RWMutex
}

// NewClassifier creates a classifier with no model loaded.
func NewClassifier(transactions service.TransactionStore, blobs service.ModelBlobStore, config Config) *Classifier {
	if config.BlobName == "" {
		config.BlobName = DefaultBlobName
	}
	if config.Forest.Trees <= 0 {
		config.Forest = DefaultForestConfig()
	}
	return &Classifier{
		transactions: transactions,
		blobs:        blobs,
		config:       config,
	}
}

// Load reads the persisted model. A missing, incompatible or corrupt blob
// leaves the classifier without a model; only store failures are returned.
func (c *Classifier) Load(ctx context.Context) error {
	data, err := c.blobs.LoadBlob(ctx, c.config.BlobName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			slog.Debug("No saved model", "blob", c.config.BlobName)
			return nil
		}
		return fmt.Errorf("failed to load model: %w", err)
	}

	m, err := UnmarshalModel(data)
	if err != nil {
		slog.Warn("Ignoring unusable model", "blob", c.config.BlobName, "error", err)
		return nil
	}

	c.mu.Lock()
	c.model = m
	c.mu.Unlock()

	slog.Info("Loaded model",
		"samples", m.Samples,
		"categories", len(m.Labels),
		"accuracy", m.Accuracy,
		"trained_at", m.TrainedAt)
	return nil
}

func (c *Classifier) current() *Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// HasModel reports whether a model is loaded.
func (c *Classifier) HasModel() bool {
	return c.current() != nil
}

// Info describes the loaded model.
func (c *Classifier) Info() (Info, bool) {
	m := c.current()
	if m == nil {
		return Info{}, false
	}
	return Info{
		TrainedAt:  m.TrainedAt,
		Samples:    m.Samples,
		Categories: len(m.Labels),
		Features:   m.NFeatures,
		Accuracy:   m.Accuracy,
	}, true
}

// Train fits a new model on user-confirmed transactions. Too few samples
// is reported in the result and leaves the stored model untouched.
func (c *Classifier) Train(ctx context.Context, minSamples int) (*TrainResult, error) {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	txns, err := c.transactions.GetTransactions(ctx, service.TransactionFilter{State: service.StateTrainable})
	if err != nil {
		return nil, fmt.Errorf("failed to load training data: %w", err)
	}

	if len(txns) < minSamples {
		return &TrainResult{
			Samples: len(txns),
			Error:   fmt.Sprintf("%s: need %d, have %d", common.ErrInsufficientData, minSamples, len(txns)),
		}, nil
	}

	docs := make([]string, len(txns))
	ids := make([]int64, len(txns))
	for i, txn := range txns {
		docs[i] = ExtractFeatures(txn).Text()
		ids[i] = *txn.CategoryID
	}

	encoder := FitLabels(ids)
	y := make([]int, len(ids))
	for i, id := range ids {
		y[i], _ = encoder.Encode(id)
	}

	accuracy, err := c.crossValidate(ctx, docs, y, encoder.Len())
	if err != nil {
		return nil, err
	}

	vectorizer := NewVectorizer(c.config.MaxFeatures, c.config.MinDF)
	if err := vectorizer.Fit(docs); err != nil {
		return &TrainResult{Samples: len(txns), Categories: encoder.Len(), Error: err.Error()}, nil
	}
	x := vectorizer.TransformAll(docs)

	forest, err := TrainForest(ctx, x, y, encoder.Len(), c.config.Forest)
	if err != nil {
		return nil, fmt.Errorf("failed to train forest: %w", err)
	}

	if accuracy < 0 {
		accuracy = score(forest, x, y)
	}
	accuracy = math.Round(accuracy*1000) / 1000

	m := newModel(vectorizer, encoder, forest, len(txns), accuracy)
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	if err := c.blobs.SaveBlob(ctx, c.config.BlobName, data); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	c.mu.Lock()
	c.model = m
	c.mu.Unlock()

	slog.Info("Trained model",
		"samples", len(txns),
		"categories", encoder.Len(),
		"features", len(vectorizer.Vocabulary),
		"accuracy", accuracy)

	return &TrainResult{
		Success:    true,
		Samples:    len(txns),
		Categories: encoder.Len(),
		Accuracy:   accuracy,
	}, nil
}

// crossValidate returns k-fold accuracy with k = min(5, n/5), or -1 when
// there are too few samples for two folds.
func (c *Classifier) crossValidate(ctx context.Context, docs []string, y []int, nClasses int) (float64, error) {
	k := len(docs) / 5
	if k > maxFolds {
		k = maxFolds
	}
	if k < 2 {
		return -1, nil
	}

	rng := rand.New(rand.NewSource(c.config.Forest.Seed)) //nolint:gosec // deterministic fold assignment
	order := rng.Perm(len(docs))

	var correct, total int
	for fold := 0; fold < k; fold++ {
		var trainDocs, testDocs []string
		var trainY, testY []int
		for pos, i := range order {
			if pos%k == fold {
				testDocs = append(testDocs, docs[i])
				testY = append(testY, y[i])
			} else {
				trainDocs = append(trainDocs, docs[i])
				trainY = append(trainY, y[i])
			}
		}

		total += len(testDocs)
		vectorizer := NewVectorizer(c.config.MaxFeatures, c.config.MinDF)
		if err := vectorizer.Fit(trainDocs); err != nil {
			continue
		}
		forest, err := TrainForest(ctx, vectorizer.TransformAll(trainDocs), trainY, nClasses, c.config.Forest)
		if err != nil {
			return 0, fmt.Errorf("failed to cross-validate: %w", err)
		}
		for i, doc := range testDocs {
			if class, _ := forest.Predict(vectorizer.Transform(doc)); class == testY[i] {
				correct++
			}
		}
	}

	return float64(correct) / float64(total), nil
}

func score(forest *Forest, x [][]float64, y []int) float64 {
	correct := 0
	for i := range x {
		if class, _ := forest.Predict(x[i]); class == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}

// Predict returns the model's category for txn. It reports false when no
// model is loaded or prediction fails; failures are logged, not returned.
func (c *Classifier) Predict(ctx context.Context, txn model.Transaction) (prediction *model.Prediction, ok bool) {
	m := c.current()
	if m == nil || ctx.Err() != nil {
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Prediction failed", "transaction_id", txn.ID, "panic", r)
			prediction, ok = nil, false
		}
	}()

	categoryID, confidence := m.Predict(txn)
	return &model.Prediction{
		TransactionID: txn.ID,
		CategoryID:    categoryID,
		Confidence:    confidence,
	}, true
}

// PredictBatch predicts each transaction. The result is aligned with txns
// and holds nil where no prediction was made.
func (c *Classifier) PredictBatch(ctx context.Context, txns []model.Transaction) []*model.Prediction {
	predictions := make([]*model.Prediction, len(txns))
	for i, txn := range txns {
		if p, ok := c.Predict(ctx, txn); ok {
			predictions[i] = p
		}
	}
	return predictions
}

// AutoCategorizePending applies predictions at or above minConfidence to
// pending transactions. Rows confirmed in the meantime are left alone.
func (c *Classifier) AutoCategorizePending(ctx context.Context, minConfidence float64) (*AutoResult, error) {
	if !c.HasModel() {
		return nil, common.ErrNoModel
	}

	pending, err := c.transactions.GetTransactions(ctx, service.TransactionFilter{State: service.StatePending})
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transactions: %w", err)
	}

	result := &AutoResult{Processed: len(pending)}
	for _, txn := range pending {
		prediction, ok := c.Predict(ctx, txn)
		if !ok || prediction.Confidence < minConfidence {
			continue
		}

		categoryID := prediction.CategoryID
		updated, err := c.transactions.ApplyAutomatedUpdate(ctx, service.AutomatedUpdate{
			ID:         txn.ID,
			CategoryID: &categoryID,
			Source:     model.SourceML,
		})
		if err != nil {
			return result, fmt.Errorf("failed to apply prediction to transaction %d: %w", txn.ID, err)
		}
		if updated {
			result.Categorized++
		}
	}

	slog.Info("Auto-categorized pending transactions",
		"processed", result.Processed,
		"categorized", result.Categorized,
		"min_confidence", minConfidence)
	return result, nil
}
