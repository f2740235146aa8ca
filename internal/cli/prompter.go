package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/tally/internal/model"
	"github.com/schollz/progressbar/v3"
)

// Action is what the reviewer chose to do with a transaction.
type Action int

// Review actions.
const (
	ActionAccept Action = iota
	ActionOverride
	ActionSkip
	ActionQuit
)

// Decision is the outcome of reviewing one transaction.
type Decision struct {
	CategoryID     *int64
	Classification model.Classification
	Action         Action
}

// ReviewStats counts decisions made in a session.
type ReviewStats struct {
	Reviewed int
	Accepted int
	Modified int
	Skipped  int
}

// Prompter reviews suggestions one transaction at a time on a plain
// terminal.
type Prompter struct {
	startTime   time.Time
	writer      io.Writer
	reader      *LineReader
	progressBar *progressbar.ProgressBar
	categories  []model.Category
	stats       ReviewStats
	mu          sync.Mutex
}

// NewPrompter creates a prompter reading from r and writing to w.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &Prompter{
		reader:    NewLineReader(r),
		writer:    w,
		startTime: time.Now(),
	}
}

// SetCategories sets the categories offered when overriding a suggestion.
func (p *Prompter) SetCategories(categories []model.Category) {
	p.categories = slices.Clone(categories)
}

// SetTotal starts a progress bar over total transactions.
func (p *Prompter) SetTotal(total int) {
	if total <= 0 {
		return
	}
	p.progressBar = NewProgressBar(p.writer, total, "Reviewing transactions")
}

// Stats returns a snapshot of the session's counters.
func (p *Prompter) Stats() ReviewStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Review shows txn with its suggestion and asks what to do with it.
// End of input is treated as a request to quit.
func (p *Prompter) Review(ctx context.Context, txn model.Transaction, suggestion model.Suggestion) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	content := FormatTransaction(txn) + "\n\n" +
		"Suggestion: " + FormatSuggestion(suggestion)
	if suggestion.Explanation != "" {
		content += "\n  " + SubtleStyle.Render(suggestion.Explanation)
	}
	if _, err := fmt.Fprintln(p.writer, RenderBox("Transaction Review", content)); err != nil {
		return Decision{}, fmt.Errorf("failed to write transaction box: %w", err)
	}

	acceptable := suggestion.Classification != model.ClassificationUnclassified
	choices := []string{"p", "b", "s", "q"}
	var options strings.Builder
	if acceptable {
		choices = append(choices, "a")
		options.WriteString("  [A] Accept suggestion\n")
	}
	options.WriteString("  [P] Personal, choose a category\n")
	options.WriteString("  [B] Business, choose a category\n")
	options.WriteString("  [S] Skip\n")
	options.WriteString("  [Q] Quit\n")
	if _, err := fmt.Fprint(p.writer, options.String()); err != nil {
		return Decision{}, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice", choices)
	if errors.Is(err, io.EOF) {
		return Decision{Action: ActionQuit}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	switch choice {
	case "a":
		decision = Decision{Action: ActionAccept, Classification: suggestion.Classification, CategoryID: suggestion.CategoryID}
	case "p", "b":
		classification := model.ClassificationPersonal
		if choice == "b" {
			classification = model.ClassificationBusiness
		}
		categoryID, err := p.promptCategory(ctx)
		if errors.Is(err, io.EOF) {
			return Decision{Action: ActionQuit}, nil
		}
		if err != nil {
			return Decision{}, err
		}
		decision = Decision{Action: ActionOverride, Classification: classification, CategoryID: categoryID}
	case "s":
		decision = Decision{Action: ActionSkip}
	case "q":
		return Decision{Action: ActionQuit}, nil
	}

	p.record(decision.Action)
	return decision, nil
}

func (p *Prompter) record(action Action) {
	p.mu.Lock()
	p.stats.Reviewed++
	switch action {
	case ActionAccept:
		p.stats.Accepted++
	case ActionOverride:
		p.stats.Modified++
	case ActionSkip:
		p.stats.Skipped++
	}
	p.mu.Unlock()

	if p.progressBar != nil {
		if err := p.progressBar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}

		choice := strings.ToLower(input)
		if slices.Contains(validChoices, choice) {
			return choice, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

// promptCategory asks for a category by number or name. A blank answer
// means no category.
func (p *Prompter) promptCategory(ctx context.Context) (*int64, error) {
	var list strings.Builder
	for i, c := range p.categories {
		fmt.Fprintf(&list, "  %2d. %s\n", i+1, c.Name)
	}
	if _, err := fmt.Fprint(p.writer, list.String()); err != nil {
		return nil, fmt.Errorf("failed to write categories: %w", err)
	}

	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt("Category (number or name, blank for none)")); err != nil {
			return nil, fmt.Errorf("failed to write category prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return nil, err
		}
		if input == "" {
			return nil, nil
		}

		if category := p.findCategory(input); category != nil {
			id := category.ID
			return &id, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatError(fmt.Sprintf("Unknown category %q. Please try again.", input))); err != nil {
			slog.Warn("Failed to write unknown category error", "error", err)
		}
	}
}

func (p *Prompter) findCategory(input string) *model.Category {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(p.categories) {
			return &p.categories[n-1]
		}
		return nil
	}
	for i := range p.categories {
		if strings.EqualFold(p.categories[i].Name, input) {
			return &p.categories[i]
		}
	}
	return nil
}

// ShowCompletion prints a summary of the session.
func (p *Prompter) ShowCompletion() {
	stats := p.Stats()
	content := fmt.Sprintf("Reviewed: %d\nAccepted: %d\nModified: %d\nSkipped:  %d\nTime:     %s",
		stats.Reviewed,
		stats.Accepted,
		stats.Modified,
		stats.Skipped,
		time.Since(p.startTime).Round(time.Second))

	if _, err := fmt.Fprintln(p.writer, "\n"+RenderBox(ChartIcon+" Review Complete", content)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}
