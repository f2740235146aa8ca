package ml

import "sort"

// LabelEncoder maps category ids to dense class indices.
type LabelEncoder struct {
	index  map[int64]int
	Labels []int64
}

// FitLabels builds an encoder over the sorted distinct ids.
func FitLabels(ids []int64) *LabelEncoder {
	seen := make(map[int64]bool, len(ids))
	labels := make([]int64, 0)
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			labels = append(labels, id)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return newLabelEncoder(labels)
}

func newLabelEncoder(labels []int64) *LabelEncoder {
	e := &LabelEncoder{Labels: labels, index: make(map[int64]int, len(labels))}
	for i, id := range labels {
		e.index[id] = i
	}
	return e
}

// Encode returns the class index of id.
func (e *LabelEncoder) Encode(id int64) (int, bool) {
	i, ok := e.index[id]
	return i, ok
}

// Decode returns the category id of class i.
func (e *LabelEncoder) Decode(i int) int64 {
	return e.Labels[i]
}

// Len is the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.Labels)
}
