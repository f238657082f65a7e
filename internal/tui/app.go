package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/imv/internal/config"
	"github.com/matheus3301/imv/internal/readcache"
	"github.com/matheus3301/imv/internal/rpc"
	"github.com/matheus3301/imv/internal/timeline"
	"github.com/matheus3301/imv/internal/tui/keys"
	"github.com/matheus3301/imv/internal/tui/model"
	"github.com/matheus3301/imv/internal/tui/ui"
	"github.com/matheus3301/imv/internal/tui/views"
	"github.com/matheus3301/imv/internal/types"
)

const statusInterval = 5 * time.Second

// threadKey identifies what the thread view last rendered.
type threadKey struct {
	chatID      int64
	n           int
	first, last int64
	target      int
	hasMore     bool
}

func keyOf(t model.Thread) threadKey {
	k := threadKey{chatID: t.ChatID, n: len(t.Messages), target: t.Target, hasMore: t.HasMore}
	if k.n > 0 {
		k.first, k.last = t.Messages[0].ID, t.Messages[k.n-1].ID
	}
	return k
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	main     *tview.Flex
	header   *tview.Flex
	pages    *ui.Pages
	crumbs   *ui.Crumbs
	menu     *ui.Menu
	info     *ui.ProfileInfo
	prompt   *ui.Prompt
	flash    *ui.FlashModel
	flashBar *ui.FlashBar

	list    *views.ConversationList
	thread  *views.MessageThread
	media   *views.MediaView
	details *views.ConversationInfo
	help    *views.HelpView

	vm       *model.ViewModel
	client   *rpc.Client
	registry *keys.Registry
	logger   *zap.Logger
	profile  string

	promptVisible bool
	rendered      threadKey

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *rpc.Client, profileName string, cc config.Cache, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	vm, err := model.NewViewModel(c, cc, logger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		pages:    ui.NewPages(),
		crumbs:   ui.NewCrumbs(theme),
		menu:     ui.NewMenu(theme),
		info:     ui.NewProfileInfo(theme),
		prompt:   ui.NewPrompt(theme),
		flash:    ui.NewFlashModel(),
		flashBar: ui.NewFlashBar(theme),
		list:     views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		media:    views.NewMediaView(theme),
		details:  views.NewConversationInfo(theme),
		help:     views.NewHelpView(theme),
		vm:       vm,
		client:   c,
		registry: keys.NewRegistry(),
		logger:   logger,
		profile:  profileName,
		rendered: threadKey{target: -1},
		ctx:      ctx,
		cancel:   cancel,
	}

	a.crumbs.SetPrefix(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a, nil
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: a.showHelp,
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("reload", &keys.Action{
		Key:         tcell.KeyCtrlR,
		Description: "ctrl-r:reload",
		Handler:     a.reload,
	})

	list := a.list.Name()
	a.registry.AddView(list, "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(list, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Handler: func() { a.showDetails(a.list.SelectedID()) },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(list, fmt.Sprintf("jump%d", n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Handler: func() {
				if id := a.list.ByIndex(n); id != 0 {
					a.openConversation(id)
				}
			},
		})
	}

	thread := a.thread.Name()
	a.registry.AddView(thread, "older", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Handler: a.loadOlder,
	})
	a.registry.AddView(thread, "timeline", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Handler: func() { a.app.SetFocus(a.thread.Timeline()) },
	})
	a.registry.AddView(thread, "goto", &keys.Action{
		Rune: 'g', Key: tcell.KeyRune,
		Handler: func() { a.showPrompt(ui.PromptJump) },
	})
	a.registry.AddView(thread, "media", &keys.Action{
		Rune: 'm', Key: tcell.KeyRune,
		Handler: a.showMedia,
	})
	a.registry.AddView(thread, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Handler: func() { a.showDetails(a.thread.ChatID()) },
	})

	a.registry.AddView(a.media.Name(), "older", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Handler: a.loadOlderMedia,
	})
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, col int) {
		if id := a.list.ByIndex(row); id != 0 {
			a.openConversation(id)
		}
	})

	a.thread.Timeline().SetOnSelect(func(t timeline.Tick) {
		a.jumpTo(t.FirstDate)
	})

	a.media.SetSelectedFunc(func(row, col int) {
		item, ok := a.media.Selected()
		if !ok {
			return
		}
		a.pages.PopTo(a.thread.Name())
		a.app.SetFocus(a.thread.Messages())
		a.jumpTo(item.Date)
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.list.SetFilter(text)
		case ui.PromptJump:
			a.gotoDate(text)
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.list.ClearFilter()
		}
		a.hidePrompt()
	})

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		if c := a.pages.Component(a.pages.Current()); c != nil {
			a.menu.Update(c.Hints())
		}
	})
}

func (a *App) setupLayout() {
	a.pages.Register(a.list, a.list)
	a.pages.Register(a.thread, a.thread)
	a.pages.Register(a.media, a.media)
	a.pages.Register(a.details, a.details)
	a.pages.Register(a.help, a.help)

	a.header = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 20, 0, false)

	a.main = tview.NewFlex().SetDirection(tview.FlexRow)
	a.layout()

	a.app.SetRoot(a.main, true)
	a.app.EnableMouse(true)
	a.pages.Reset(a.list.Name())

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		focused := a.app.GetFocus()
		// Let text input widgets handle all keys normally.
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		if event.Key() == tcell.KeyEscape {
			if focused == a.thread.Timeline() {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			if a.pages.Pop() != "" {
				a.focusCurrent()
				return nil
			}
			if a.list.Filter() != "" {
				a.list.ClearFilter()
				return nil
			}
		}

		if a.registry.HandleEvent(a.pages.Current(), event) {
			return nil
		}
		return event
	})
}

func (a *App) layout() {
	a.main.Clear()
	a.main.AddItem(a.header, 7, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.pages, 0, 1, !a.promptVisible)
	if a.promptVisible {
		a.main.AddItem(a.prompt, 3, 0, true)
	}
	a.main.AddItem(a.flashBar, 1, 0, false)
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if mode == ui.PromptJump && a.thread.ChatID() == 0 {
		return
	}
	a.prompt.Activate(mode)
	a.promptVisible = true
	a.layout()
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptVisible = false
	a.layout()
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case a.thread.Name():
		a.app.SetFocus(a.thread.Messages())
	case a.list.Name():
		a.app.SetFocus(a.list)
	case a.media.Name():
		a.app.SetFocus(a.media)
	case a.details.Name():
		a.app.SetFocus(a.details)
	case a.help.Name():
		a.app.SetFocus(a.help)
	}
}

func (a *App) push(c ui.Component) {
	a.pages.Push(c.Name())
	a.focusCurrent()
}

// fail reports err unless it only means a newer request took over.
func (a *App) fail(what string, err error) {
	if errors.Is(err, readcache.ErrSuperseded) || errors.Is(err, context.Canceled) {
		return
	}
	a.logger.Warn(what, zap.Error(err))
	a.flash.Err(fmt.Errorf("%s: %w", what, err))
}

func (a *App) openConversation(id int64) {
	conv, _ := a.vm.Conversation(id)
	a.thread.SetConversation(id, conv.Title())
	a.rendered = threadKey{target: -1}
	a.push(a.thread)

	go func() {
		if err := a.vm.OpenConversation(a.ctx, id); err != nil {
			a.fail("load messages", err)
			return
		}
		a.loadTimeline(id)
	}()
}

func (a *App) loadTimeline(id int64) {
	ticks, err := a.vm.LoadTimeline(a.ctx, types.SourceMessages)
	if err != nil {
		a.fail("load timeline", err)
		return
	}
	a.app.QueueUpdateDraw(func() {
		if a.thread.ChatID() != id {
			return
		}
		a.thread.Timeline().SetTicks(ticks)
		if t := a.vm.Thread(); t.Target >= 0 && t.Target < len(t.Messages) {
			a.thread.Timeline().SetCursorDate(t.Messages[t.Target].Date)
		}
	})
}

func (a *App) loadOlder() {
	go func() {
		added, err := a.vm.LoadOlder(a.ctx)
		if err != nil {
			a.fail("load older messages", err)
			return
		}
		if !added {
			a.flash.Info("No older messages")
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.syncViews()
			a.thread.ScrollToBeginning()
		})
	}()
}

func (a *App) jumpTo(date int64) {
	go func() {
		if err := a.vm.JumpToDate(a.ctx, date); err != nil {
			a.fail("go to date", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.syncViews()
			a.app.SetFocus(a.thread.Messages())
		})
	}()
}

func (a *App) gotoDate(text string) {
	date, err := ParseDate(text, time.Local)
	if err != nil {
		a.flash.Err(err)
		return
	}
	a.jumpTo(date)
}

func (a *App) showMedia() {
	if a.thread.ChatID() == 0 {
		return
	}
	a.push(a.media)
	a.media.Update(nil, false)
	go func() {
		if err := a.vm.LoadMedia(a.ctx, false); err != nil {
			a.fail("load media", err)
		}
	}()
}

func (a *App) loadOlderMedia() {
	go func() {
		if err := a.vm.LoadMedia(a.ctx, true); err != nil {
			a.fail("load media", err)
		}
	}()
}

func (a *App) showDetails(id int64) {
	conv, ok := a.vm.Conversation(id)
	if !ok {
		return
	}
	a.details.Update(&conv)
	a.push(a.details)
}

func (a *App) showHelp() {
	a.push(a.help)
}

func (a *App) reload() {
	go func() {
		if err := a.vm.LoadConversations(a.ctx); err != nil {
			a.fail("load conversations", err)
			return
		}
		_ = a.vm.LoadStatus(a.ctx)
		a.flash.Info("Reloaded")
	}()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "q", "quit":
		a.Stop()
	case "h", "help":
		a.showHelp()
	case "r", "reload":
		a.reload()
	case "media":
		a.showMedia()
	case "g", "goto":
		if a.thread.ChatID() == 0 {
			a.flash.Warn("Open a conversation first")
			return
		}
		a.gotoDate(cmd.Args)
	case "chat":
		a.openByName(cmd.Args)
	default:
		a.flash.Warn(fmt.Sprintf("Unknown command %q", cmd.Name))
	}
}

// openByName opens the first conversation the daemon's filter matches.
func (a *App) openByName(query string) {
	go func() {
		resp, err := a.client.ListFilterConversations(a.ctx, &rpc.ListFilterConversationsRequest{Query: query, Limit: 1})
		if err != nil {
			a.fail("find conversation", err)
			return
		}
		if len(resp.Conversations) == 0 {
			a.flash.Warn(fmt.Sprintf("No conversation matches %q", query))
			return
		}
		id := resp.Conversations[0].ID
		a.app.QueueUpdateDraw(func() {
			a.pages.Reset(a.list.Name())
			a.openConversation(id)
		})
	}()
}

// syncViews copies view model state into the widgets. Must run on the UI
// goroutine.
func (a *App) syncViews() {
	convs, total := a.vm.Conversations()
	a.list.Update(convs, total)

	if t := a.vm.Thread(); t.ChatID == a.thread.ChatID() && t.ChatID != 0 {
		if k := keyOf(t); k != a.rendered {
			a.thread.Update(t.Messages, t.HasMore, t.Target)
			a.rendered = k
		}
	}

	if a.pages.Current() == a.media.Name() {
		items, more := a.vm.Media()
		a.media.Update(items, more)
	}

	if st := a.vm.Status(); st != nil {
		a.info.Update(&ui.ProfileData{
			Profile:       st.Profile,
			ChatDB:        st.ChatDB,
			State:         st.State,
			Conversations: st.Conversations,
			Messages:      st.Messages,
			Uptime:        time.Duration(st.UptimeMs) * time.Millisecond,
		})
	}
	a.flashBar.Update(a.flash.GetMessage())
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		if err := a.vm.LoadStatus(a.ctx); err != nil {
			a.fail("load status", err)
		}
		if err := a.vm.LoadConversations(a.ctx); err != nil {
			a.fail("load conversations", err)
		}
	}()
	go a.refreshLoop()
	go a.statusLoop()
	go a.watchLoop()

	defer a.vm.Close()
	return a.app.Run()
}

// refreshLoop redraws whenever the view model or the flash message changes.
func (a *App) refreshLoop() {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-a.flash.Watch():
		case <-tick.C:
			// Expires flash messages.
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.syncViews)
	}
}

func (a *App) statusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := a.vm.LoadStatus(a.ctx); err != nil {
				a.logger.Debug("status poll failed", zap.Error(err))
			}
		case <-a.ctx.Done():
			return
		}
	}
}

// watchLoop follows daemon change events, reconnecting with backoff.
func (a *App) watchLoop() {
	backoff := time.Second
	for a.ctx.Err() == nil {
		err := a.watch()
		if a.ctx.Err() != nil {
			return
		}
		a.logger.Debug("change stream ended", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-time.After(backoff):
		case <-a.ctx.Done():
			return
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (a *App) watch() error {
	stream, err := a.client.WatchChanges(a.ctx, &rpc.WatchChangesRequest{})
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		a.logger.Debug("change event", zap.String("kind", evt.Kind), zap.String("detail", evt.Detail))
		a.vm.HandleChange(a.ctx, evt)
		switch evt.Kind {
		case rpc.KindStoreChanged:
			if id := a.vm.Thread().ChatID; id != 0 {
				a.loadTimeline(id)
			}
		case rpc.KindStoreUnavailable:
			a.flash.Warn("chat.db is unavailable")
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
