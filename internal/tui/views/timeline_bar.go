package views

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/imv/internal/timeline"
	"github.com/matheus3301/imv/internal/tui/ui"
)

var barLevels = []rune("▁▂▃▄▅▆▇█")

// TimelineBar is a month scrubber drawn under the message thread. Each tick
// is a month with messages; its height follows the month's count.
type TimelineBar struct {
	*tview.Box
	theme    *ui.Theme
	ticks    []timeline.Tick
	cursor   int
	onSelect func(timeline.Tick)
}

// NewTimelineBar creates an empty scrubber.
func NewTimelineBar(theme *ui.Theme) *TimelineBar {
	box := tview.NewBox()
	box.SetBorder(true)
	box.SetBorderColor(theme.BorderColor)
	box.SetBackgroundColor(theme.BgColor)
	box.SetTitle(" Timeline ")
	box.SetTitleColor(theme.TitleColor)
	box.SetTitleAlign(tview.AlignLeft)
	return &TimelineBar{Box: box, theme: theme, cursor: -1}
}

// SetTicks replaces the ticks and moves the cursor to the newest month.
func (tb *TimelineBar) SetTicks(ticks []timeline.Tick) {
	tb.ticks = ticks
	tb.cursor = len(ticks) - 1
}

// SetOnSelect sets the callback fired when a tick is chosen with Enter or a
// click.
func (tb *TimelineBar) SetOnSelect(fn func(timeline.Tick)) {
	tb.onSelect = fn
}

// SetCursorDate moves the cursor to the month closest to date.
func (tb *TimelineBar) SetCursorDate(date int64) {
	if i := timeline.NearestDate(tb.ticks, date); i >= 0 {
		tb.cursor = i
	}
}

// Cursor returns the tick under the cursor.
func (tb *TimelineBar) Cursor() (timeline.Tick, bool) {
	if tb.cursor < 0 || tb.cursor >= len(tb.ticks) {
		return timeline.Tick{}, false
	}
	return tb.ticks[tb.cursor], true
}

// Move shifts the cursor by delta months, clamped to the ends.
func (tb *TimelineBar) Move(delta int) {
	if len(tb.ticks) == 0 {
		return
	}
	tb.cursor = max(0, min(len(tb.ticks)-1, tb.cursor+delta))
}

// MoveYear moves the cursor to the previous (dir < 0) or next year start.
func (tb *TimelineBar) MoveYear(dir int) {
	for i := tb.cursor + dir; i >= 0 && i < len(tb.ticks); i += dir {
		if tb.ticks[i].IsYearStart || i == 0 {
			tb.cursor = i
			return
		}
	}
}

func (tb *TimelineBar) positions(width int) []float64 {
	return timeline.Layout(len(tb.ticks), float64(max(width-1, 0)))
}

// indexAt returns the tick nearest to column col of an inner area width
// columns wide.
func (tb *TimelineBar) indexAt(col, width int) int {
	return timeline.Nearest(tb.positions(width), float64(col))
}

func (tb *TimelineBar) fire() {
	if t, ok := tb.Cursor(); ok && tb.onSelect != nil {
		tb.onSelect(t)
	}
}

// Draw implements tview.Primitive.
func (tb *TimelineBar) Draw(screen tcell.Screen) {
	tb.Box.DrawForSubclass(screen, tb)
	x, y, w, h := tb.GetInnerRect()
	if w <= 0 || h <= 0 {
		return
	}
	if len(tb.ticks) == 0 {
		tview.Print(screen, "no history", x, y, w, tview.AlignCenter, tb.theme.FgColor)
		return
	}

	peak := 1
	for _, t := range tb.ticks {
		peak = max(peak, t.Count)
	}
	base := tcell.StyleDefault.Background(tb.theme.BgColor)
	for i, t := range tb.positions(w) {
		col := x + int(math.Round(t))
		tick := tb.ticks[i]
		level := tick.Count * (len(barLevels) - 1) / peak
		style := base.Foreground(tb.theme.TimelineBarColor)
		if i == tb.cursor {
			style = base.Foreground(tb.theme.CrumbActiveBg)
		}
		screen.SetContent(col, y, barLevels[level], nil, style)
		if h > 1 && tick.IsYearStart {
			tview.Print(screen, tick.YearLabel, col, y+1, x+w-col, tview.AlignLeft, tb.theme.TimelineYearColor)
		}
	}

	if t, ok := tb.Cursor(); ok && h > 1 {
		label := fmt.Sprintf(" %s: %d ", t.Label, t.Count)
		tview.Print(screen, label, x, y+h-1, w, tview.AlignRight, tb.theme.CounterColor)
	}
}

// InputHandler implements tview.Primitive.
func (tb *TimelineBar) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return tb.WrapInputHandler(func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
		switch event.Key() {
		case tcell.KeyLeft:
			tb.Move(-1)
		case tcell.KeyRight:
			tb.Move(1)
		case tcell.KeyHome:
			tb.Move(-len(tb.ticks))
		case tcell.KeyEnd:
			tb.Move(len(tb.ticks))
		case tcell.KeyEnter:
			tb.fire()
		case tcell.KeyRune:
			switch event.Rune() {
			case 'h':
				tb.Move(-1)
			case 'l':
				tb.Move(1)
			case 'H':
				tb.MoveYear(-1)
			case 'L':
				tb.MoveYear(1)
			}
		}
	})
}

// MouseHandler implements tview.Primitive. A left click selects the nearest
// month and fires the select callback.
func (tb *TimelineBar) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
	return tb.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (bool, tview.Primitive) {
		if action != tview.MouseLeftClick || !tb.InRect(event.Position()) {
			return false, nil
		}
		setFocus(tb)
		x, _, w, _ := tb.GetInnerRect()
		mx, _ := event.Position()
		if i := tb.indexAt(mx-x, w); i >= 0 {
			tb.cursor = i
			tb.fire()
		}
		return true, nil
	})
}
