package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/imv/internal/timeline"
	"github.com/matheus3301/imv/internal/tui/ui"
	"github.com/matheus3301/imv/internal/types"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct{ in, want string }{
		{"👍🏻", "👍"},
		{"👨\u200d👩\u200d👧", "👨👩👧"},
		{"❤️", "❤"},
		{"look\uFFFC here", "look here"},
		{"bell\a\x1b[31m", "bell[31m"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := singleLine("  a\n\n b\tc "); got != "a b c" {
		t.Errorf("singleLine = %q", got)
	}
}

func TestFormatTimestampAt(t *testing.T) {
	now := time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2024, 6, 15, 9, 5, 0, 0, time.UTC), "09:05"},
		{time.Date(2024, 2, 1, 9, 5, 0, 0, time.UTC), "Feb 01"},
		{time.Date(2021, 2, 1, 9, 5, 0, 0, time.UTC), "2021-02-01"},
	}
	for _, tt := range tests {
		if got := formatTimestampAt(tt.at.UnixMilli(), now); got != tt.want {
			t.Errorf("formatTimestampAt(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
	if formatTimestampAt(0, now) != "" {
		t.Error("zero date should render empty")
	}
}

func conv(id int64, name, last string, handles ...string) types.Conversation {
	c := types.Conversation{ID: id, DisplayName: types.StrPtr(name), LastMessageText: types.StrPtr(last)}
	for _, h := range handles {
		c.Participants = append(c.Participants, types.Handle{Identifier: h})
	}
	return c
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update([]types.Conversation{
		conv(1, "Weekend Crew", "see you saturday", "+15550100", "bob@example.com"),
		conv(2, "", "running late", "+15550199"),
		conv(3, "Family", "dinner?", "mom@example.com"),
	}, 3)

	if cl.ByIndex(2) != 2 || cl.ByIndex(0) != 0 || cl.ByIndex(4) != 0 {
		t.Errorf("ByIndex unfiltered = %d %d %d", cl.ByIndex(2), cl.ByIndex(0), cl.ByIndex(4))
	}

	cl.SetFilter("BOB@")
	if cl.ByIndex(1) != 1 || cl.ByIndex(2) != 0 {
		t.Errorf("filter by handle: %d %d", cl.ByIndex(1), cl.ByIndex(2))
	}
	cl.SetFilter("dinner")
	if cl.ByIndex(1) != 3 {
		t.Errorf("filter by last message: %d", cl.ByIndex(1))
	}
	cl.SetFilter("+1555019")
	if cl.ByIndex(1) != 2 {
		t.Errorf("filter by title from participant: %d", cl.ByIndex(1))
	}
	if cl.SelectedID() != 2 {
		t.Errorf("SelectedID = %d after filter", cl.SelectedID())
	}
	cl.ClearFilter()
	cl.SelectID(3)
	if cl.SelectedID() != 3 {
		t.Errorf("SelectedID = %d after SelectID(3)", cl.SelectedID())
	}
	// An update keeps the selection on the same conversation.
	cl.Update([]types.Conversation{conv(3, "Family", "dinner?"), conv(1, "Weekend Crew", "")}, 2)
	if cl.SelectedID() != 3 {
		t.Errorf("SelectedID = %d after reorder", cl.SelectedID())
	}
}

func ticks(counts ...int) []timeline.Tick {
	var entries []types.DateIndexEntry
	for i, c := range counts {
		month := i%12 + 1
		year := 2023 + i/12
		entries = append(entries, types.DateIndexEntry{
			Year: year, Month: month, Count: c,
			FirstDate: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		})
	}
	return timeline.Build(entries)
}

func TestTimelineBarNavigation(t *testing.T) {
	tb := NewTimelineBar(ui.DefaultTheme())
	if _, ok := tb.Cursor(); ok {
		t.Error("empty bar has a cursor")
	}
	tb.Move(1)

	tb.SetTicks(ticks(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14))
	if c, _ := tb.Cursor(); c.Year != 2024 || c.Month != 2 {
		t.Errorf("initial cursor = %+v, want newest", c)
	}
	tb.Move(100)
	if c, _ := tb.Cursor(); c.Month != 2 {
		t.Errorf("Move past end = %+v", c)
	}
	tb.MoveYear(-1)
	if c, _ := tb.Cursor(); c.Year != 2024 || c.Month != 1 {
		t.Errorf("MoveYear(-1) = %+v", c)
	}
	tb.MoveYear(-1)
	if c, _ := tb.Cursor(); c.Year != 2023 || c.Month != 1 {
		t.Errorf("second MoveYear(-1) = %+v", c)
	}
	tb.MoveYear(1)
	if c, _ := tb.Cursor(); c.Year != 2024 || c.Month != 1 {
		t.Errorf("MoveYear(1) = %+v", c)
	}

	tb.SetCursorDate(time.Date(2023, 6, 20, 0, 0, 0, 0, time.UTC).UnixMilli())
	if c, _ := tb.Cursor(); c.Year != 2023 || c.Month != 7 {
		t.Errorf("SetCursorDate = %+v, want Jul 2023 (closest first date)", c)
	}

	var picked timeline.Tick
	tb.SetOnSelect(func(t timeline.Tick) { picked = t })
	tb.cursor = tb.indexAt(0, 27)
	tb.fire()
	if picked.Year != 2023 || picked.Month != 1 {
		t.Errorf("click at left edge picked %+v", picked)
	}
	if i := tb.indexAt(26, 27); i != 13 {
		t.Errorf("indexAt right edge = %d, want 13", i)
	}
	if i := tb.indexAt(13, 27); i != 6 && i != 7 {
		t.Errorf("indexAt middle = %d", i)
	}
}

func TestMessageThreadRender(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	mt.SetConversation(7, "Weekend Crew")
	if mt.ChatID() != 7 {
		t.Fatalf("ChatID = %d", mt.ChatID())
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local).UnixMilli()
	msgs := []types.Message{
		{ID: 1, Text: types.StrPtr("hello [red]world"), Sender: &types.Handle{Identifier: "+15550100"}, Date: base},
		{ID: 2, Text: types.StrPtr("photo\uFFFC"), IsFromMe: true, Date: base + 1000,
			Attachments: []types.Attachment{{GUID: "A", TransferName: types.StrPtr("IMG_1.jpeg"), Type: types.AttachmentImage, TotalBytes: 2048}},
			Reactions:   []types.Reaction{{Emoji: "❤️", Reactor: "+15550100"}}},
		{ID: 3, Text: types.StrPtr("next day"), Sender: &types.Handle{Identifier: "+15550100"}, Date: base + 86_400_000},
	}

	out := mt.render(msgs, true, 1)
	for _, want := range []string{"load older", "+15550100", "You", "IMG_1.jpeg", "2.0 kB", "❤ +15550100", `["target"]`, "Friday, March 1, 2024", "Saturday, March 2, 2024"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[red]world") {
		t.Error("message text not escaped")
	}
	if strings.Count(out, `["target"]`) != 1 || strings.Count(out, `[""]`) != 1 {
		t.Error("target region not closed exactly once")
	}

	out = mt.render(msgs, false, -1)
	if strings.Contains(out, "load older") || strings.Contains(out, `["target"]`) {
		t.Errorf("unexpected markers:\n%s", out)
	}
	if !strings.Contains(mt.render(nil, false, -1), "No messages") {
		t.Error("empty thread placeholder missing")
	}
}

func TestMediaViewSelected(t *testing.T) {
	mv := NewMediaView(ui.DefaultTheme())
	items := []types.MediaItem{
		{Attachment: types.Attachment{GUID: "a", Type: types.AttachmentImage}, Date: 10},
		{Attachment: types.Attachment{GUID: "b", Type: types.AttachmentVideo}, Date: 20},
	}
	mv.Update(items, true)
	if it, ok := mv.Selected(); !ok || it.Date != 20 {
		t.Errorf("Selected = %+v, %v, want newest", it, ok)
	}
	mv.Select(1, 0) // the "older" marker row
	if _, ok := mv.Selected(); ok {
		t.Error("marker row selected an item")
	}
	mv.Select(2, 0)
	if it, _ := mv.Selected(); it.Date != 10 {
		t.Errorf("Selected row 2 = %+v", it)
	}

	mv.Update(items, false)
	mv.Select(1, 0)
	if it, _ := mv.Selected(); it.Date != 10 {
		t.Errorf("without marker row 1 = %+v", it)
	}
}
