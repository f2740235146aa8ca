package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

// Response errors. The engine treats each of them as a fall-through.
var (
	ErrMalformedResponse = errors.New("malformed classifier response")
	ErrUnknownCategory   = errors.New("classifier chose an unknown category")
	ErrLowConfidence     = errors.New("classifier confidence below threshold")
	// ErrNoMatch means the reply named no category for a personal
	// transaction.
	ErrNoMatch = errors.New("classifier found no matching category")
)

// defaultResponseConfidence applies when the reply omits a confidence.
const defaultResponseConfidence = 0.7

type classifyResponse struct {
	CategoryID     *int64   `json:"category_id"`
	Confidence     *float64 `json:"confidence"`
	Classification string   `json:"classification"`
	CategoryName   string   `json:"category_name"`
	Explanation    string   `json:"explanation"`
}

// cleanMarkdownWrapper strips a surrounding markdown code fence.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[i+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// parseResponse decodes a classifier reply and resolves its category
// against the offered set.
func parseResponse(content string, offered []model.Category) (*TextResult, error) {
	var resp classifyResponse
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	classification := model.ClassificationPersonal
	if resp.Classification != "" {
		parsed, err := model.ParseClassification(resp.Classification)
		if err != nil || parsed == model.ClassificationUnclassified {
			return nil, fmt.Errorf("%w: classification %q", ErrMalformedResponse, resp.Classification)
		}
		classification = parsed
	}

	confidence := defaultResponseConfidence
	if resp.Confidence != nil {
		confidence = min(1, max(0, *resp.Confidence))
	}

	result := &TextResult{
		Classification: classification,
		Confidence:     confidence,
		Reasoning:      resp.Explanation,
	}

	category, err := resolveCategory(resp, offered)
	if err != nil {
		return nil, err
	}
	if category == nil {
		// A business reply without a category is filed under the business
		// sentinel by the engine.
		if classification != model.ClassificationBusiness {
			return nil, ErrNoMatch
		}
		return result, nil
	}

	id := category.ID
	result.CategoryID = &id
	result.CategoryName = category.Name
	return result, nil
}

// retryable reports whether a failed attempt is worth repeating. Replies
// the parser rejected are final.
func retryable(err error) bool {
	if errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrNoMatch) {
		return false
	}

	var retryableErr *common.RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return true
}

func resolveCategory(resp classifyResponse, offered []model.Category) (*model.Category, error) {
	if resp.CategoryID != nil {
		for i := range offered {
			if offered[i].ID == *resp.CategoryID {
				return &offered[i], nil
			}
		}
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCategory, *resp.CategoryID)
	}

	name := strings.TrimSpace(resp.CategoryName)
	if name == "" {
		return nil, nil
	}
	for i := range offered {
		if strings.EqualFold(offered[i].Name, name) {
			return &offered[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}
