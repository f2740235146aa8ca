// Package cli provides styled terminal output and line-based prompting.
package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#5B8DEF")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4") // Teal
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#FFE66D") // Yellow
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#FF6B6B") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3") // Light teal
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(PrimaryColor).
				PaddingRight(2)

	// TableCellStyle formats table cells with appropriate padding.
	TableCellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	LedgerIcon  = "🧾"
	RuleIcon    = "📏"
	ModelIcon   = "🌲"
	TextIcon    = "🤖"
	ChartIcon   = "📊"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the ledger icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(LedgerIcon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// FormatConfidence renders a 0..1 confidence as a colored percentage.
func FormatConfidence(confidence float64) string {
	text := fmt.Sprintf("%.0f%%", confidence*100)
	switch {
	case confidence >= 0.8:
		return SuccessStyle.Render(text)
	case confidence >= 0.5:
		return WarningStyle.Render(text)
	default:
		return ErrorStyle.Render(text)
	}
}

// SourceIcon returns the icon for a categorization source.
func SourceIcon(source model.CategorizationSource) string {
	switch source {
	case model.SourceRule:
		return RuleIcon
	case model.SourceML:
		return ModelIcon
	case model.SourceLLM:
		return TextIcon
	case model.SourceUser:
		return SuccessIcon
	default:
		return InfoIcon
	}
}

// FormatSuggestion renders a one-line summary of a suggestion.
func FormatSuggestion(s model.Suggestion) string {
	category := s.CategoryName
	if category == "" {
		category = SubtleStyle.Render("no category")
	}
	return fmt.Sprintf("%s %s / %s (%s, %s)",
		SourceIcon(s.Source),
		BoldStyle.Render(string(s.Classification)),
		category,
		FormatConfidence(s.Confidence),
		s.Source)
}

// FormatTransaction renders the fields a reviewer needs to identify txn.
func FormatTransaction(txn model.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date:    %s\n", txn.Date.Format("Jan 2, 2006"))
	fmt.Fprintf(&b, "Amount:  %s\n", txn.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Details: %s", txn.Details)
	if txn.Type != "" {
		fmt.Fprintf(&b, "\nType:    %s", txn.Type)
	}
	if txn.Particulars != "" {
		fmt.Fprintf(&b, "\nPart.:   %s", txn.Particulars)
	}
	if txn.Code != "" {
		fmt.Fprintf(&b, "\nCode:    %s", txn.Code)
	}
	if txn.Reference != "" {
		fmt.Fprintf(&b, "\nRef:     %s", txn.Reference)
	}
	return b.String()
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	boxContent := lipgloss.JoinVertical(
		lipgloss.Left,
		boxTitle,
		content,
	)

	return BoxStyle.Render(boxContent)
}

// RenderTable lays out rows in padded columns under a styled header.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < min(len(row), len(widths)); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(TableHeaderStyle.Width(widths[i] + 2).Render(h))
	}
	for _, row := range rows {
		b.WriteString("\n")
		for i := 0; i < min(len(row), len(widths)); i++ {
			b.WriteString(TableCellStyle.Width(widths[i] + 2).Render(row[i]))
		}
	}
	return b.String()
}
