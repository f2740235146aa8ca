package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/model"
	"github.com/charmbracelet/lipgloss"
)

const categoryWindow = 12

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.state {
	case StateLoading:
		body = m.theme.Muted.Render("Loading transactions...")
	case StateDone:
		body = m.renderDone()
	case StateChoosingCategory:
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderTransaction(), m.renderCategories())
	case StateReviewing, StateApplying:
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderTransaction(), m.renderSuggestion())
	}

	sections := []string{m.renderHeader(), body}
	if m.lastError != nil {
		sections = append(sections, m.theme.Error.Render("Error: "+m.lastError.Error()))
	}
	sections = append(sections, m.help.View(m.keymap))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.Title.Render("Review transactions")
	if len(m.queue) == 0 {
		return title
	}
	done := min(m.index, len(m.queue))
	return title + "\n" + m.renderProgress(done, len(m.queue))
}

func (m Model) renderProgress(done, total int) string {
	const width = 30
	filled := width * done / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return m.theme.ProgressBar.Render(bar) + m.theme.Muted.Render(fmt.Sprintf(" %d/%d", done, total))
}

func (m Model) renderTransaction() string {
	txn, ok := m.current()
	if !ok {
		return ""
	}

	lines := []string{
		m.theme.Bold.Render(txn.Details),
		fmt.Sprintf("%s  %s", txn.Date.Format("Jan 2, 2006"), amountStyle(m.theme, txn).Render(txn.Amount.StringFixed(2))),
	}
	for _, field := range []struct{ label, value string }{
		{"Type", txn.Type},
		{"Particulars", txn.Particulars},
		{"Code", txn.Code},
		{"Reference", txn.Reference},
	} {
		if field.value != "" {
			lines = append(lines, m.theme.Muted.Render(field.label+": ")+field.value)
		}
	}
	return m.theme.Box.Render(strings.Join(lines, "\n"))
}

func amountStyle(theme Theme, txn model.Transaction) lipgloss.Style {
	if txn.IsDebit() {
		return theme.Normal
	}
	return theme.Success
}

func (m Model) renderSuggestion() string {
	if m.state == StateApplying {
		return m.theme.Muted.Render("Saving...")
	}
	if m.suggestion == nil {
		return m.theme.Muted.Render("Thinking...")
	}

	s := m.suggestion
	category := s.CategoryName
	if category == "" {
		category = "no category"
	}
	line := fmt.Sprintf("Suggestion: %s / %s  %s  (%s)",
		m.theme.Bold.Render(string(s.Classification)),
		m.theme.Bold.Render(category),
		m.confidence(s.Confidence),
		s.Source)
	if s.Explanation != "" {
		line += "\n" + m.theme.Subtitle.Render(s.Explanation)
	}
	return line
}

func (m Model) confidence(c float64) string {
	text := fmt.Sprintf("%.0f%%", c*100)
	switch {
	case c >= 0.8:
		return m.theme.Success.Render(text)
	case c >= 0.5:
		return m.theme.Warning.Render(text)
	default:
		return m.theme.Error.Render(text)
	}
}

// renderCategories shows a window of the category list around the cursor.
func (m Model) renderCategories() string {
	rows := make([]string, 0, len(m.categories)+1)
	rows = append(rows, "(no category)")
	for _, c := range m.categories {
		rows = append(rows, c.Name)
	}

	start := max(0, m.cursor-categoryWindow/2)
	end := min(len(rows), start+categoryWindow)
	start = max(0, end-categoryWindow)

	var b strings.Builder
	b.WriteString(m.theme.Subtitle.Render(fmt.Sprintf("Choose a %s category:", m.classification)))
	for i := start; i < end; i++ {
		b.WriteString("\n")
		if i == m.cursor {
			b.WriteString(m.theme.Selected.Render("> " + rows[i]))
			continue
		}
		b.WriteString("  " + rows[i])
	}
	return b.String()
}

func (m Model) renderDone() string {
	if m.lastError != nil && len(m.queue) == 0 {
		return m.theme.Error.Render("Could not load transactions.")
	}
	if len(m.queue) == 0 {
		return m.theme.Success.Render("Nothing to review.")
	}
	return m.theme.Box.Render(fmt.Sprintf(
		"%s\n\nAccepted:   %d\nModified:   %d\nSkipped:    %d\nPropagated: %d\n\n%s",
		m.theme.Success.Render("Review complete"),
		m.stats.Accepted,
		m.stats.Modified,
		m.stats.Skipped,
		m.stats.Propagated,
		m.theme.Muted.Render("Press Enter to exit"),
	))
}
