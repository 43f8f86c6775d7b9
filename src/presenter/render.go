package presenter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"textlens/src/format"
	"textlens/src/notification"
)

const panelWidth = 72

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headingStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	listStyle    = lipgloss.NewStyle().PaddingLeft(2)
	codeStyle    = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1).
			Width(panelWidth)
	calloutStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			MaxWidth(panelWidth)

	statusStyles = map[StatusKind]lipgloss.Style{
		KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		KindWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
	noticeStyles = map[notification.Kind]lipgloss.Style{
		notification.Success:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		notification.Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		notification.Processing: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	}
)

// RenderPopup draws the popup panel for v.
func RenderPopup(v View) string {
	var parts []string
	parts = append(parts, titleStyle.Render("TextLens"))

	if v.Advisory != "" {
		parts = append(parts, statusStyles[KindWarning].Render(v.Advisory))
	}
	if v.Status != "" {
		parts = append(parts, statusStyles[v.StatusKind].Render(v.Status))
	}

	switch {
	case v.Processing:
		parts = append(parts, "Processing selection...")
	case v.Result != nil && v.Result.Error == "":
		parts = append(parts, headingStyle.Render("Extracted Text"), v.Result.ExtractedText)
		parts = append(parts, headingStyle.Render("AI Analysis"), RenderAnalysis(v.Result.Analysis))
	case v.Result == nil && v.Status == "":
		parts = append(parts, "No result yet. Start a selection to analyze text.")
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// RenderAnalysis converts markdown to display blocks.
func RenderAnalysis(markdown string) string {
	blocks := format.Blocks(format.PlainText(markdown))
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case format.Code:
			lines = append(lines, codeStyle.Render(b.Text))
		case format.Numbered, format.Bulleted:
			lines = append(lines, listStyle.Render(b.Text))
		default:
			lines = append(lines, b.Text)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderCallout draws a callout box with its anchor.
func RenderCallout(v CalloutView) string {
	return fmt.Sprintf("@(%d,%d)\n%s", v.Left, v.Top, calloutStyle.Render(v.Text))
}

// RenderNotice draws a transient notification line.
func RenderNotice(n notification.Notice) string {
	style, ok := noticeStyles[n.Kind]
	if !ok {
		style = lipgloss.NewStyle()
	}
	return style.Render(strings.TrimSpace(n.Text))
}
