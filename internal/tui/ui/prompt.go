package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode indicates what the prompt input is used for.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
	PromptJump
)

const historySize = 20

// Prompt is a command, filter or date input bar. Submitted entries are kept
// in a per-mode history reachable with Up and Down.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	history  map[PromptMode][]string
	cursor   int
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{
		InputField: input,
		theme:      theme,
		history:    make(map[PromptMode][]string),
	}

	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			p.Submit(p.GetText())
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})
	input.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyUp:
			p.SetText(p.Recall(-1))
			return nil
		case tcell.KeyDown:
			p.SetText(p.Recall(1))
			return nil
		}
		return event
	})

	return p
}

// SetOnSubmit sets the callback when the prompt is submitted.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback when the prompt is cancelled.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Submit records text in the current mode's history and passes it to the
// submit callback. Empty text is ignored.
func (p *Prompt) Submit(text string) {
	p.SetText("")
	if text == "" {
		return
	}
	h := p.history[p.mode]
	if len(h) == 0 || h[len(h)-1] != text {
		h = append(h, text)
		if len(h) > historySize {
			h = h[len(h)-historySize:]
		}
		p.history[p.mode] = h
	}
	p.cursor = len(h)
	if p.onSubmit != nil {
		p.onSubmit(p.mode, text)
	}
}

// Recall moves through the current mode's history by delta and returns the
// entry under the cursor. Moving past the newest entry returns "".
func (p *Prompt) Recall(delta int) string {
	h := p.history[p.mode]
	p.cursor = max(0, min(len(h), p.cursor+delta))
	if p.cursor == len(h) {
		return ""
	}
	return h[p.cursor]
}

// Activate shows the prompt in the specified mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.cursor = len(p.history[mode])
	p.SetText("")
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter ")
	case PromptJump:
		p.SetLabel("@")
		p.SetTitle(" Go to date (YYYY-MM-DD or YYYY-MM) ")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}
