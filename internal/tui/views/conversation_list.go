package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/imv/internal/tui/ui"
	"github.com/matheus3301/imv/internal/types"
)

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []types.Conversation
	visible []types.Conversation
	total   int
	filter  string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Start implements Component.
func (cl *ConversationList) Start() {}

// Stop implements Component.
func (cl *ConversationList) Stop() {}

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "d", Description: "Details"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the listed conversations, keeping the selection on the
// same conversation when it is still visible.
func (cl *ConversationList) Update(convs []types.Conversation, total int) {
	selected := cl.SelectedID()
	cl.convs = convs
	cl.total = total
	cl.render()
	cl.SelectID(selected)
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
	cl.Table.Select(1, 0)
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.SetFilter("")
}

// Filter returns the active filter text.
func (cl *ConversationList) Filter() string {
	return cl.filter
}

func matches(c types.Conversation, filter string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	if strings.Contains(strings.ToLower(c.Title()), filter) ||
		strings.Contains(strings.ToLower(types.Deref(c.LastMessageText)), filter) {
		return true
	}
	for _, h := range c.Participants {
		if strings.Contains(strings.ToLower(h.Identifier), filter) {
			return true
		}
	}
	return false
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" WHEN", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.visible = cl.visible[:0]
	for _, c := range cl.convs {
		if matches(c, cl.filter) {
			cl.visible = append(cl.visible, c)
		}
	}

	for i, c := range cl.visible {
		row := i + 1
		chatType := "DM"
		if c.IsGroup {
			chatType = fmt.Sprintf("GROUP(%d)", len(c.Participants))
		}
		when := ""
		if c.LastMessageDate > 0 {
			when = humanize.Time(time.UnixMilli(c.LastMessageDate))
		}
		fg := cl.theme.FgColor
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(singleLine(c.Title()))).SetExpansion(1).SetMaxWidth(32).SetTextColor(fg))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(singleLine(types.Deref(c.LastMessageText)))).SetExpansion(2).SetTextColor(fg))
		cl.SetCell(row, 2, tview.NewTableCell(when).SetTextColor(fg).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(chatType).SetTextColor(fg).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d of %d) ", len(cl.convs), cl.total))
	}
}

// SelectedID returns the ID of the selected conversation, or 0.
func (cl *ConversationList) SelectedID() int64 {
	row, _ := cl.GetSelection()
	return cl.ByIndex(row)
}

// ByIndex returns the ID of the Nth visible conversation (1-based), or 0.
func (cl *ConversationList) ByIndex(n int) int64 {
	if n < 1 || n > len(cl.visible) {
		return 0
	}
	return cl.visible[n-1].ID
}

// SelectID moves the cursor to the conversation with id, if visible.
func (cl *ConversationList) SelectID(id int64) {
	for i, c := range cl.visible {
		if c.ID == id {
			cl.Table.Select(i+1, 0)
			return
		}
	}
}
