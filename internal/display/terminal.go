// Package display provides terminal output formatting for subfeed.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

const separator = " • "

// TerminalFormatter formats feed pages for terminal display.
type TerminalFormatter struct {
	now func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{now: time.Now}
}

// WithClock returns a copy of the formatter measuring relative times from now.
func (f *TerminalFormatter) WithClock(now func() time.Time) *TerminalFormatter {
	return &TerminalFormatter{now: now}
}

// FormatItem formats a single upload for display.
func (f *TerminalFormatter) FormatItem(item aggregator.VideoItem) string {
	var lines []string

	lines = append(lines, item.Title)

	// Channel and timestamp
	meta := fmt.Sprintf("  by %s%s%s", item.ChannelTitle, separator, f.FormatTimestamp(item.PublishedAt))
	lines = append(lines, meta)

	if item.Description != "" {
		lines = append(lines, "  "+f.TruncateText(firstLine(item.Description), 100))
	}

	if item.URL != "" {
		lines = append(lines, "  "+item.URL)
	}

	return strings.Join(lines, "\n") + "\n"
}

// FormatFeed formats multiple uploads for display.
func (f *TerminalFormatter) FormatFeed(items []aggregator.VideoItem) string {
	if len(items) == 0 {
		return "No recent uploads from your subscriptions.\n"
	}

	var formatted []string
	for _, item := range items {
		formatted = append(formatted, f.FormatItem(item))
	}

	return strings.Join(formatted, "\n---\n\n")
}

// FormatPage formats a page of uploads followed by a position footer.
func (f *TerminalFormatter) FormatPage(page aggregator.Page) string {
	if page.TotalCount == 0 {
		return f.FormatFeed(nil)
	}

	var b strings.Builder
	if len(page.Items) == 0 {
		fmt.Fprintf(&b, "Page %d is past the end of the feed.\n", page.PageIndex)
	} else {
		b.WriteString(f.FormatFeed(page.Items))
	}

	fmt.Fprintf(&b, "\nPage %d of %d%s%d uploads", page.PageIndex, page.TotalPages(), separator, page.TotalCount)
	if page.HasNext() {
		fmt.Fprintf(&b, "%snext: --page %d", separator, page.PageIndex+1)
	}
	b.WriteString("\n")
	return b.String()
}

// FormatSubscriptions lists subscribed channels, one per line.
func (f *TerminalFormatter) FormatSubscriptions(subs []youtube.Subscription) string {
	if len(subs) == 0 {
		return "You are not subscribed to any channels.\n"
	}

	var b strings.Builder
	for _, s := range subs {
		fmt.Fprintf(&b, "%s (%s)\n", s.Title, s.ChannelID)
	}
	fmt.Fprintf(&b, "\n%d channels\n", len(subs))
	return b.String()
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	diff := f.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// FormatRemaining formats how long until t, for the status command.
func (f *TerminalFormatter) FormatRemaining(t time.Time) string {
	left := t.Sub(f.now())
	if left <= 0 {
		return "expired"
	}
	return left.Truncate(time.Minute).String() + " left"
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
