package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"inboxtriage/internal/ctlclient"
	"inboxtriage/internal/host/gmailhost"
	"inboxtriage/internal/model"
)

var (
	bold     = lipgloss.NewStyle().Bold(true)
	dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	header   = lipgloss.NewStyle().Bold(true).Underline(true)
)

func enabledBadge(enabled bool) string {
	if enabled {
		return success.Render("● enabled")
	}
	return errStyle.Render("○ disabled")
}

// labelChip 用 label 自身的颜色渲染标题
func labelChip(title string, bg, fg model.Color) string {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(gmailhost.HexColor(bg))).
		Foreground(lipgloss.Color(gmailhost.HexColor(fg))).
		Padding(0, 1).
		Render(title)
}

func ratio(categorized, processed int64) string {
	if processed == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(categorized)*100/float64(processed))
}

func age(since time.Time, now time.Time) string {
	d := now.Sub(since)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func printStatus(w io.Writer, enabled bool, stats model.Stats, backend string, now time.Time) {
	fmt.Fprintln(w, header.Render("Inbox Triage"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-12s %s\n", "State", enabledBadge(enabled))
	fmt.Fprintf(w, "  %-12s %s\n", "Backend", backend)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-12s %d\n", "Processed", stats.Processed)
	fmt.Fprintf(w, "  %-12s %d  %s\n", "Categorized", stats.Categorized,
		dim.Render("("+ratio(stats.Categorized, stats.Processed)+")"))
	fmt.Fprintf(w, "  %-12s %s  %s\n", "Last reset", stats.LastReset.Format(time.RFC3339),
		dim.Render(age(stats.LastReset, now)))
}

func printBreakdown(w io.Writer, b ctlclient.CategoryBreakdown) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold.Render("  By category")+" "+dim.Render("(last "+b.Since+")"))
	if len(b.Counts) == 0 {
		fmt.Fprintln(w, dim.Render("    no entries"))
		return
	}
	for _, c := range b.Counts {
		name := c.Category
		if name == "" {
			name = "(failed)"
		}
		fmt.Fprintf(w, "    %-12s %d\n", name, c.Count)
	}
}

func printVocabulary(w io.Writer, v ctlclient.Vocabulary) {
	fmt.Fprintln(w, header.Render(fmt.Sprintf("Label vocabulary v%d", v.Version)))
	fmt.Fprintln(w)
	for _, c := range v.Categories {
		fmt.Fprintf(w, "  %-10s %s\n", c.Category, labelChip(c.Title, c.BackgroundColor, c.ForegroundColor))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, dim.Render("  guard titles: "+strings.Join(v.GuardTitles, ", ")))
}
