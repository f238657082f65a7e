package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/imv/internal/tui/ui"
	"github.com/matheus3301/imv/internal/types"
)

const targetRegion = "target"

// MessageThread displays one conversation read-only, with the timeline
// scrubber underneath.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	timeline *TimelineBar
	chatName string
	chatID   int64
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	tl := NewTimelineBar(theme)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(tl, 4, 0, false)

	return &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		timeline: tl,
	}
}

// Name implements Component.
func (mt *MessageThread) Name() string { return "Thread" }

// Start implements Component.
func (mt *MessageThread) Start() {}

// Stop implements Component.
func (mt *MessageThread) Stop() {}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "o", Description: "Older"},
		{Key: "t", Description: "Timeline"},
		{Key: "g", Description: "Go to date"},
		{Key: "m", Description: "Media"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetConversation sets the conversation shown and clears the previous one.
func (mt *MessageThread) SetConversation(id int64, name string) {
	mt.chatID = id
	mt.chatName = name
	mt.messages.Clear()
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(singleLine(name))))
	mt.timeline.SetTicks(nil)
}

// ChatID returns the conversation shown.
func (mt *MessageThread) ChatID() int64 {
	return mt.chatID
}

// Update renders msgs, oldest first. When target is a valid index that
// message is highlighted and scrolled into view; otherwise the view follows
// the newest message.
func (mt *MessageThread) Update(msgs []types.Message, hasMore bool, target int) {
	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, mt.render(msgs, hasMore, target))

	if target >= 0 && target < len(msgs) {
		mt.messages.Highlight(targetRegion)
		mt.messages.ScrollToHighlight()
		mt.timeline.SetCursorDate(msgs[target].Date)
		return
	}
	mt.messages.Highlight()
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) render(msgs []types.Message, hasMore bool, target int) string {
	var b strings.Builder
	if len(msgs) == 0 {
		b.WriteString("[::d]No messages.[-:-:-]\n")
		return b.String()
	}
	if hasMore {
		b.WriteString("[::d]── o: load older messages ──[-:-:-]\n\n")
	}

	me := colorHex(mt.theme.SenderMeColor)
	other := colorHex(mt.theme.SenderColor)
	reactionColor := colorHex(mt.theme.ReactionColor)
	attachColor := colorHex(mt.theme.AttachmentColor)

	var lastDay string
	for i, m := range msgs {
		t := time.UnixMilli(m.Date).Local()
		if day := t.Format("Monday, January 2, 2006"); day != lastDay {
			fmt.Fprintf(&b, "[::d]── %s ──[-:-:-]\n\n", day)
			lastDay = day
		}
		if i == target {
			fmt.Fprintf(&b, `["%s"]`, targetRegion)
		}

		color := other
		if m.IsFromMe {
			color = me
		}
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n",
			color, tview.Escape(sanitizeForTerminal(senderName(m))), t.Format("15:04"))
		if text := strings.TrimSpace(sanitizeForTerminal(types.Deref(m.Text))); text != "" {
			b.WriteString(tview.Escape(text))
			b.WriteString("\n")
		}
		for _, a := range m.Attachments {
			fmt.Fprintf(&b, "[%s]%s[-]\n", attachColor, tview.Escape(attachmentLabel(a)))
		}
		if len(m.Reactions) > 0 {
			var parts []string
			for _, r := range m.Reactions {
				who := r.Reactor
				if r.IsFromMe {
					who = "You"
				}
				parts = append(parts, sanitizeForTerminal(r.Emoji)+" "+who)
			}
			fmt.Fprintf(&b, "[%s]%s[-]\n", reactionColor, tview.Escape(strings.Join(parts, "  ")))
		}
		if i == target {
			b.WriteString(`[""]`)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Timeline returns the scrubber (for focus management).
func (mt *MessageThread) Timeline() *TimelineBar {
	return mt.timeline
}

// ScrollToBeginning shows the oldest loaded message.
func (mt *MessageThread) ScrollToBeginning() {
	mt.messages.ScrollToBeginning()
}
