package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/clock"
	"github.com/xolan/mondo/internal/tui/ui"
)

// RenderBlocks lays out a breakdown as one bordered block per unit.
func RenderBlocks(b clock.Breakdown, styles ui.Styles) string {
	fields := b.Fields()
	blocks := make([]string, 0, len(fields))
	for _, f := range fields {
		body := styles.ClockValue.Render(f.Padded()) + "\n" + styles.ClockLabel.Render(f.Label)
		blocks = append(blocks, styles.ClockBlock.Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}

// ItemRenderOptions configures how bucket items are rendered
type ItemRenderOptions struct {
	Width    int            // Available width for rendering
	Cursor   int            // Currently selected item index (-1 for none)
	Location *time.Location // Timezone for creation dates
}

// RenderItemList renders bucket items with aligned columns
func RenderItemList(items []bucket.Item, styles ui.Styles, opts ItemRenderOptions) string {
	if len(items) == 0 {
		return ""
	}

	indexWidth := len(fmt.Sprintf("[%d]", len(items)))
	dateWidth := 0
	dates := make([]string, len(items))
	for i, item := range items {
		dates[i] = item.DisplayDate(opts.Location)
		dateWidth = max(dateWidth, len(dates[i]))
	}

	contentWidth := opts.Width - indexWidth - dateWidth - 8
	if contentWidth < 20 {
		contentWidth = 20
	}

	var b strings.Builder
	for i, item := range items {
		line := fmt.Sprintf("%s %s %s %s",
			styles.ItemIndex.Render(fmt.Sprintf("%-*s", indexWidth, fmt.Sprintf("[%d]", i+1))),
			renderCheck(item, styles),
			renderContent(item, styles, contentWidth),
			styles.ItemDate.Render(dates[i]))

		style := styles.ItemNormal
		if i == opts.Cursor {
			style = styles.ItemSelected
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func renderCheck(item bucket.Item, styles ui.Styles) string {
	if item.Completed {
		return styles.ItemCheck.Render("[x]")
	}
	return styles.ItemIndex.Render("[ ]")
}

func renderContent(item bucket.Item, styles ui.Styles, width int) string {
	content := fmt.Sprintf("%-*s", width, truncate(item.Content, width))
	if item.Completed {
		return styles.ItemDone.Render(content)
	}
	return styles.ItemContent.Render(content)
}

// truncate shortens s to width runes, ending with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
