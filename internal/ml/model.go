package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/tally/internal/model"
)

// FormatVersion is the model blob layout version. Blobs written with any
// other version are rejected on load.
const FormatVersion = 1

// Model loading errors.
var (
	ErrIncompatibleModel = errors.New("incompatible model format")
	ErrCorruptModel      = errors.New("corrupt model blob")
)

// Model is a trained classifier in its persisted form.
type Model struct {
	TrainedAt     time.Time `json:"trained_at"`
	Vocabulary    []string  `json:"vocabulary"`
	IDF           []float64 `json:"idf"`
	Labels        []int64   `json:"labels"`
	Trees         []Tree    `json:"trees"`
	FormatVersion int       `json:"format_version"`
	NFeatures     int       `json:"n_features"`
	Samples       int       `json:"samples"`
	Accuracy      float64   `json:"accuracy"`

	vectorizer *Vectorizer
	encoder    *LabelEncoder
}

func newModel(vectorizer *Vectorizer, encoder *LabelEncoder, forest *Forest, samples int, accuracy float64) *Model {
	return &Model{
		FormatVersion: FormatVersion,
		TrainedAt:     time.Now().UTC(),
		Vocabulary:    vectorizer.Vocabulary,
		IDF:           vectorizer.IDF,
		Labels:        encoder.Labels,
		Trees:         forest.Trees,
		NFeatures:     len(vectorizer.Vocabulary),
		Samples:       samples,
		Accuracy:      accuracy,
		vectorizer:    vectorizer,
		encoder:       encoder,
	}
}

// Marshal encodes the model as JSON.
func (m *Model) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}
	return data, nil
}

// UnmarshalModel decodes and validates a model blob.
func UnmarshalModel(data []byte) (*Model, error) {
	var header struct {
		FormatVersion int `json:"format_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	if header.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrIncompatibleModel, header.FormatVersion, FormatVersion)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}

	m.vectorizer = newFittedVectorizer(m.Vocabulary, m.IDF)
	m.encoder = newLabelEncoder(m.Labels)
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.Vocabulary) == 0 || len(m.Vocabulary) != len(m.IDF) || m.NFeatures != len(m.Vocabulary) {
		return errors.New("vocabulary and idf disagree")
	}
	if len(m.Labels) == 0 || len(m.Trees) == 0 {
		return errors.New("model has no labels or trees")
	}
	for t, tree := range m.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for n, node := range tree.Nodes {
			if node.Feature == leafFeature {
				if len(node.Dist) != len(m.Labels) {
					return fmt.Errorf("tree %d node %d: bad distribution", t, n)
				}
				continue
			}
			if node.Feature < 0 || node.Feature >= m.NFeatures ||
				node.Left <= n || node.Left >= len(tree.Nodes) ||
				node.Right <= n || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: bad split", t, n)
			}
		}
	}
	return nil
}

func (m *Model) forest() *Forest {
	return &Forest{Trees: m.Trees, NClasses: len(m.Labels)}
}

// Predict returns the most probable category for txn.
func (m *Model) Predict(txn model.Transaction) (int64, float64) {
	x := m.vectorizer.Transform(ExtractFeatures(txn).Text())
	class, confidence := m.forest().Predict(x)
	return m.encoder.Decode(class), confidence
}
