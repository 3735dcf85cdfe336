package display

import (
	"strings"
	"testing"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

func TestAC300_TerminalFeed_ShowsVideoTitle(t *testing.T) {
	item := aggregator.VideoItem{
		ID:           "test123",
		Title:        "How to Build CLI Tools in Go",
		ChannelTitle: "Tech Channel",
		URL:          aggregator.WatchURL("test123"),
		PublishedAt:  time.Now(),
	}

	output := NewTerminalFormatter().FormatItem(item)

	if !strings.Contains(output, "How to Build CLI Tools in Go") {
		t.Error("user should see video title in terminal output")
	}
}

func TestAC300_TerminalFeed_ShowsChannelName(t *testing.T) {
	item := aggregator.VideoItem{
		Title:        "Test Video",
		ChannelTitle: "CodeMaster",
		PublishedAt:  time.Now(),
	}

	output := NewTerminalFormatter().FormatItem(item)

	if !strings.Contains(output, "CodeMaster") {
		t.Error("user should see channel name in terminal output")
	}
}

func TestAC300_TerminalFeed_ShowsFirstDescriptionLine(t *testing.T) {
	item := aggregator.VideoItem{
		Title:       "Test Video",
		Description: "Summary line\nLinks and sponsors below",
		PublishedAt: time.Now(),
	}

	output := NewTerminalFormatter().FormatItem(item)

	if !strings.Contains(output, "Summary line") {
		t.Error("user should see the start of the description")
	}
	if strings.Contains(output, "sponsors") {
		t.Error("only the first description line should be shown")
	}
}

func TestAC301_TerminalFeed_ShowsRelativeTimestamps(t *testing.T) {
	formatter := NewTerminalFormatter()
	testCases := []struct {
		name      string
		timestamp time.Time
		contains  string
	}{
		{"recent minutes", time.Now().Add(-30 * time.Minute), "min"},
		{"recent hours", time.Now().Add(-3 * time.Hour), "hour"},
		{"recent days", time.Now().Add(-48 * time.Hour), "day"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			output := formatter.FormatTimestamp(tc.timestamp)
			if !strings.Contains(strings.ToLower(output), tc.contains) {
				t.Errorf("user should see relative time (%s) for %s content", tc.contains, tc.name)
			}
		})
	}
}

func TestAC302_TerminalFeed_ShowsClickableURLs(t *testing.T) {
	item := aggregator.VideoItem{
		Title:       "Test Video",
		URL:         aggregator.WatchURL("dQw4w9WgXcQ"),
		PublishedAt: time.Now(),
	}

	output := NewTerminalFormatter().FormatItem(item)

	if !strings.Contains(output, "https://www.youtube.com/watch?v=dQw4w9WgXcQ") {
		t.Error("user should see clickable video URL in terminal output")
	}
}

func TestAC303_TerminalFeed_TruncatesLongText(t *testing.T) {
	formatter := NewTerminalFormatter()
	longText := "This is a very long text that should be truncated because it exceeds the maximum length"

	truncated := formatter.TruncateText(longText, 20)

	if len(truncated) > 20 {
		t.Errorf("user should see truncated text (max 20 chars), got %d chars", len(truncated))
	}
	if !strings.HasSuffix(truncated, "...") {
		t.Error("user should see ellipsis indicating text was truncated")
	}
}

func TestAC303_TerminalFeed_PreservesShortText(t *testing.T) {
	formatter := NewTerminalFormatter()
	shortText := "Short"

	output := formatter.TruncateText(shortText, 20)

	if output != "Short" {
		t.Errorf("user should see full text when under limit, got: %s", output)
	}
}

func TestAC304_TerminalFeed_ShowsMultipleItems(t *testing.T) {
	items := []aggregator.VideoItem{
		{ID: "1", Title: "First Video", ChannelTitle: "Channel A", PublishedAt: time.Now()},
		{ID: "2", Title: "Second Video", ChannelTitle: "Channel B", PublishedAt: time.Now()},
	}

	output := NewTerminalFormatter().FormatFeed(items)

	if !strings.Contains(output, "First Video") {
		t.Error("user should see first video in feed")
	}
	if !strings.Contains(output, "Second Video") {
		t.Error("user should see second video in feed")
	}
}

func TestAC305_TerminalFeed_ShowsEmptyFeedMessage(t *testing.T) {
	output := NewTerminalFormatter().FormatFeed(nil)

	if !strings.Contains(strings.ToLower(output), "no") {
		t.Error("user should see message indicating no content available")
	}
}

func TestAC306_TerminalFeed_ShowsPageFooter(t *testing.T) {
	items := make([]aggregator.VideoItem, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, aggregator.VideoItem{ID: string(rune('a' + i)), Title: "Video", PublishedAt: time.Now()})
	}
	result := aggregator.Result{Items: items, TotalCount: len(items)}

	output := NewTerminalFormatter().FormatPage(aggregator.Paginate(result, 1, 2))
	if !strings.Contains(output, "Page 1 of 3") {
		t.Errorf("user should see where they are in the feed, got:\n%s", output)
	}
	if !strings.Contains(output, "--page 2") {
		t.Error("user should be told how to get the next page")
	}

	output = NewTerminalFormatter().FormatPage(aggregator.Paginate(result, 3, 2))
	if strings.Contains(output, "next:") {
		t.Error("last page should not offer a next page")
	}

	output = NewTerminalFormatter().FormatPage(aggregator.Paginate(result, 9, 2))
	if !strings.Contains(output, "past the end") || !strings.Contains(output, "5 uploads") {
		t.Errorf("page past the end should say so and still show the total, got:\n%s", output)
	}
}

func TestAC307_TerminalFeed_ListsSubscriptions(t *testing.T) {
	subs := []youtube.Subscription{
		{ChannelID: "UC1", Title: "Go Time"},
		{ChannelID: "UC2", Title: "Tech Talks"},
	}

	output := NewTerminalFormatter().FormatSubscriptions(subs)

	if !strings.Contains(output, "Go Time (UC1)") || !strings.Contains(output, "2 channels") {
		t.Errorf("user should see each subscribed channel, got:\n%s", output)
	}
	if !strings.Contains(strings.ToLower(NewTerminalFormatter().FormatSubscriptions(nil)), "not subscribed") {
		t.Error("user with no subscriptions should be told so")
	}
}

func TestAC308_TerminalFeed_DeterministicClock(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	formatter := NewTerminalFormatter().WithClock(func() time.Time { return now })

	if got := formatter.FormatTimestamp(now.Add(-61 * time.Minute)); got != "1 hour ago" {
		t.Errorf("expected '1 hour ago', got %q", got)
	}
	if got := formatter.FormatTimestamp(now.Add(-8 * 24 * time.Hour)); got != "Jun 2, 2024" {
		t.Errorf("old uploads should show a date, got %q", got)
	}
	if got := formatter.FormatRemaining(now.Add(90 * time.Minute)); got != "1h30m0s left" {
		t.Errorf("unexpected remaining time %q", got)
	}
	if got := formatter.FormatRemaining(now.Add(-time.Minute)); got != "expired" {
		t.Errorf("past expiry should read expired, got %q", got)
	}
}
