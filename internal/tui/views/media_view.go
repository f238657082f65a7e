package views

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/imv/internal/tui/ui"
	"github.com/matheus3301/imv/internal/types"
)

// MediaView lists the images and videos of a conversation, newest last.
type MediaView struct {
	*tview.Table
	theme *ui.Theme
	items []types.MediaItem
}

// NewMediaView creates a new media table.
func NewMediaView(theme *ui.Theme) *MediaView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Media ")
	table.SetTitleColor(theme.TitleColor)
	return &MediaView{Table: table, theme: theme}
}

// Name implements Component.
func (mv *MediaView) Name() string { return "Media" }

// Start implements Component.
func (mv *MediaView) Start() {}

// Stop implements Component.
func (mv *MediaView) Stop() {}

// Hints implements Component.
func (mv *MediaView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Show in thread"},
		{Key: "o", Description: "Older"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders items. hasMore adds a marker row for older media.
func (mv *MediaView) Update(items []types.MediaItem, hasMore bool) {
	mv.items = items
	mv.Clear()

	for col, h := range []string{" DATE", " TYPE", " NAME", " SIZE", " FROM"} {
		exp := 0
		if col == 2 {
			exp = 1
		}
		mv.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(mv.theme.TableHeaderFg).
			SetBackgroundColor(mv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(exp))
	}

	offset := 1
	if hasMore {
		mv.SetCell(1, 0, tview.NewTableCell(" … o: older media").SetSelectable(false).SetTextColor(mv.theme.CounterColor))
		offset = 2
	}
	for i, it := range items {
		row := i + offset
		a := it.Attachment
		from := "them"
		if it.IsFromMe {
			from = "me"
		}
		size := "-"
		if a.TotalBytes > 0 {
			size = humanize.Bytes(uint64(a.TotalBytes))
		}
		fg := mv.theme.FgColor
		mv.SetCell(row, 0, tview.NewTableCell(" "+formatTimestamp(it.Date)).SetTextColor(fg))
		mv.SetCell(row, 1, tview.NewTableCell(" "+string(a.Type)).SetTextColor(mv.theme.AttachmentColor))
		mv.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(singleLine(a.Name()))).SetExpansion(1).SetTextColor(fg))
		mv.SetCell(row, 3, tview.NewTableCell(size).SetAlign(tview.AlignRight).SetTextColor(fg))
		mv.SetCell(row, 4, tview.NewTableCell(" "+from).SetTextColor(fg))
	}
	mv.SetTitle(fmt.Sprintf(" Media (%d) ", len(items)))
	if len(items) > 0 {
		mv.Select(offset+len(items)-1, 0)
	}
}

// Selected returns the media item under the cursor.
func (mv *MediaView) Selected() (types.MediaItem, bool) {
	row, _ := mv.GetSelection()
	idx := row - (mv.GetRowCount() - len(mv.items))
	if idx < 0 || idx >= len(mv.items) {
		return types.MediaItem{}, false
	}
	return mv.items[idx], true
}
