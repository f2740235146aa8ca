package ml

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Vectorizer defaults.
const (
	DefaultMaxFeatures = 500
	DefaultMinDF       = 2
)

// ErrEmptyVocabulary is returned when no term survives document-frequency pruning.
var ErrEmptyVocabulary = errors.New("empty vocabulary after pruning")

var tokenPattern = regexp.MustCompile(`\w\w+`)

// Vectorizer is a TF-IDF bag of unigrams and bigrams with L2-normalized rows.
type Vectorizer struct {
	index       map[string]int
	Vocabulary  []string
	IDF         []float64
	MaxFeatures int
	MinDF       int
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(maxFeatures, minDF int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	if minDF <= 0 {
		minDF = 1
	}
	return &Vectorizer{MaxFeatures: maxFeatures, MinDF: minDF}
}

// newFittedVectorizer restores a vectorizer from a saved vocabulary.
func newFittedVectorizer(vocabulary []string, idf []float64) *Vectorizer {
	v := &Vectorizer{Vocabulary: vocabulary, IDF: idf, MaxFeatures: len(vocabulary)}
	v.buildIndex()
	return v
}

func (v *Vectorizer) buildIndex() {
	v.index = make(map[string]int, len(v.Vocabulary))
	for i, term := range v.Vocabulary {
		v.index[term] = i
	}
}

// Terms returns the unigrams and bigrams of a document.
func Terms(doc string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(doc), -1)
	terms := make([]string, 0, len(tokens)*2)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// Fit learns the vocabulary and idf weights from docs.
func (v *Vectorizer) Fit(docs []string) error {
	docFreq := make(map[string]int)
	corpusFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range Terms(doc) {
			corpusFreq[term]++
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}

	candidates := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if df >= v.MinDF {
			candidates = append(candidates, term)
		}
	}
	if len(candidates) == 0 {
		return ErrEmptyVocabulary
	}

	sort.Slice(candidates, func(i, j int) bool {
		fi, fj := corpusFreq[candidates[i]], corpusFreq[candidates[j]]
		if fi != fj {
			return fi > fj
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > v.MaxFeatures {
		candidates = candidates[:v.MaxFeatures]
	}
	sort.Strings(candidates)

	n := float64(len(docs))
	v.Vocabulary = candidates
	v.IDF = make([]float64, len(candidates))
	for i, term := range candidates {
		v.IDF[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	v.buildIndex()
	return nil
}

// Transform returns the dense TF-IDF row for doc.
func (v *Vectorizer) Transform(doc string) []float64 {
	row := make([]float64, len(v.Vocabulary))
	for _, term := range Terms(doc) {
		if i, ok := v.index[term]; ok {
			row[i]++
		}
	}

	var norm float64
	for i := range row {
		row[i] *= v.IDF[i]
		norm += row[i] * row[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range row {
			row[i] /= norm
		}
	}
	return row
}

// TransformAll vectorizes each document.
func (v *Vectorizer) TransformAll(docs []string) [][]float64 {
	rows := make([][]float64, len(docs))
	for i, doc := range docs {
		rows[i] = v.Transform(doc)
	}
	return rows
}
