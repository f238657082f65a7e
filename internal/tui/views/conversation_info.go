package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/imv/internal/tui/ui"
	"github.com/matheus3301/imv/internal/types"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Start implements Component.
func (ci *ConversationInfo) Start() {}

// Stop implements Component.
func (ci *ConversationInfo) Stop() {}

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(c *types.Conversation) {
	ci.Clear()
	if c == nil {
		return
	}
	_, _ = fmt.Fprint(ci, ci.render(c))
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(singleLine(c.Title()))))
}

func (ci *ConversationInfo) render(c *types.Conversation) string {
	fg := colorHex(ci.theme.FgColor)
	ct := colorHex(ci.theme.CounterColor)

	kind := "Direct Message"
	if c.IsGroup {
		kind = "Group"
	}
	lastActive := formatTimestamp(c.LastMessageDate)
	if lastActive == "" {
		lastActive = "-"
	}

	rows := [][2]string{
		{"Title", c.Title()},
		{"GUID", c.GUID},
		{"Identifier", c.ChatIdentifier},
		{"Service", c.Service},
		{"Type", kind},
		{"Last Active", lastActive},
		{"Last Message", singleLine(types.Deref(c.LastMessageText))},
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&b, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, r[0]+":", ct, tview.Escape(r[1]))
	}
	fmt.Fprintf(&b, "\n [%s::b]Participants (%d)[-:-:-]\n", fg, len(c.Participants))
	for _, h := range c.Participants {
		fmt.Fprintf(&b, "   [%s]%s[-] [::d]%s[-:-:-]\n", ct, tview.Escape(h.Identifier), h.Service)
	}
	return b.String()
}
