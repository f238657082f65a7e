package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/imv/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Start implements Component.
func (hv *HelpView) Start() {}

// Stop implements Component.
func (hv *HelpView) Stop() {}

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

var helpSections = []struct {
	title string
	keys  [][2]string
}{
	{"Global", [][2]string{
		{":", "Command mode"},
		{"Esc", "Cancel / go back"},
		{"?", "Help"},
		{"q", "Quit"},
		{"Ctrl-R", "Reload"},
	}},
	{"Conversation List", [][2]string{
		{"Enter", "Open conversation"},
		{"/", "Filter by name, handle or last message"},
		{"1-9", "Open the Nth conversation"},
		{"d", "Conversation details"},
	}},
	{"Message Thread", [][2]string{
		{"o", "Load older messages"},
		{"t", "Focus the timeline"},
		{"g", "Go to a date"},
		{"m", "Media in this conversation"},
		{"d", "Conversation details"},
	}},
	{"Timeline", [][2]string{
		{"←/→ h/l", "Previous / next month"},
		{"H/L", "Previous / next year"},
		{"Enter/click", "Show messages from that month"},
	}},
	{"Commands", [][2]string{
		{":chat <name>", "Open the first conversation matching name"},
		{":goto <date>", "Go to a date in the open conversation"},
		{":media", "Media in the open conversation"},
		{":reload", "Reload conversations"},
		{":help", "Show this help"},
		{":quit", "Quit"},
	}},
}

func (hv *HelpView) render() {
	kc := colorHex(hv.theme.MenuKeyColor)
	for _, s := range helpSections {
		_, _ = fmt.Fprintf(hv, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, k := range s.keys {
			_, _ = fmt.Fprintf(hv, "  [%s]%-14s[-:-:-] %s\n", kc, tview.Escape(k[0]), k[1])
		}
	}
}
