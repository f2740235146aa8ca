// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
)

// Classification is the personal/business axis of a transaction.
type Classification string

// Classification constants.
const (
	ClassificationPersonal     Classification = "personal"
	ClassificationBusiness     Classification = "business"
	ClassificationUnclassified Classification = "unclassified"
)

// ParseClassification converts a string into a Classification.
func ParseClassification(s string) (Classification, error) {
	c := Classification(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid classification %q", s)
	}
	return c, nil
}

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationPersonal, ClassificationBusiness, ClassificationUnclassified:
		return true
	}
	return false
}

func (c Classification) String() string { return string(c) }

// CategorizationSource records which tier last set a transaction's category.
type CategorizationSource string

// Categorization source constants.
const (
	SourcePending CategorizationSource = "pending"
	SourceUser    CategorizationSource = "user"
	SourceRule    CategorizationSource = "rule"
	SourceML      CategorizationSource = "ml"
	SourceLLM     CategorizationSource = "llm"
	SourceDefault CategorizationSource = "default"
	// SourceNone is only reported in suggestions and is never persisted.
	SourceNone CategorizationSource = "none"
)

// ParseCategorizationSource converts a string into a CategorizationSource.
func ParseCategorizationSource(s string) (CategorizationSource, error) {
	src := CategorizationSource(strings.ToLower(strings.TrimSpace(s)))
	if !src.Valid() {
		return "", fmt.Errorf("invalid categorization source %q", s)
	}
	return src, nil
}

// Valid reports whether s is a source that may be stored on a transaction.
func (s CategorizationSource) Valid() bool {
	switch s {
	case SourcePending, SourceUser, SourceRule, SourceML, SourceLLM, SourceDefault:
		return true
	}
	return false
}

func (s CategorizationSource) String() string { return string(s) }
