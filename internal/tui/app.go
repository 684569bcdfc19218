// Package tui is the terminal front end: a contact sidebar, the open
// conversation and a composer, painted from bus events.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/brunodmn/ripple/internal/bus"
	"github.com/brunodmn/ripple/internal/conn"
	"github.com/brunodmn/ripple/internal/convo"
	"github.com/brunodmn/ripple/internal/outbound"
	"github.com/brunodmn/ripple/internal/roster"
	"github.com/brunodmn/ripple/internal/session"
	"github.com/brunodmn/ripple/internal/tui/keys"
	"github.com/brunodmn/ripple/internal/tui/views"
	"github.com/brunodmn/ripple/internal/typing"
	"github.com/brunodmn/ripple/internal/unread"
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	registry *keys.Registry

	rosterList *views.RosterList
	thread     *views.Thread
	composer   *views.Composer
	statusBar  *views.StatusBar

	events  *bus.Bus
	roster  *roster.Model
	store   *convo.Store
	queue   *outbound.Queue
	signal  *typing.Signal
	tracker *unread.Tracker
	mgr     *conn.Manager
	sess    *session.Context
	logger  *zap.Logger

	active roster.Contact
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the TUI application.
func New(profile string, b *bus.Bus, r *roster.Model, store *convo.Store, queue *outbound.Queue,
	signal *typing.Signal, tracker *unread.Tracker, mgr *conn.Manager, sess *session.Context,
	logger *zap.Logger) *App {

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		registry:   keys.NewRegistry(),
		rosterList: views.NewRosterList(),
		thread:     views.NewThread(),
		composer:   views.NewComposer(),
		statusBar:  views.NewStatusBar(),
		events:     b,
		roster:     r,
		store:      store,
		queue:      queue,
		signal:     signal,
		tracker:    tracker,
		mgr:        mgr,
		sess:       sess,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	a.statusBar.SetProfile(profile)
	a.statusBar.SetState(mgr.State())
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddPage("home", "open", &keys.Action{
		Key:         tcell.KeyEnter,
		Description: "enter:chat", Visible: true,
		Handler: func() { a.showChat() },
	})
	a.registry.AddPage("chat", "older", &keys.Action{
		Rune: 'u', Key: tcell.KeyRune,
		Description: "u:older messages", Visible: true,
		Handler: func() { a.loadOlder() },
	})
}

func (a *App) setupCallbacks() {
	a.rosterList.SetSelectedFunc(func(row, col int) {
		if c, ok := a.rosterList.Selected(); ok {
			a.openContact(c)
		}
	})

	a.composer.SetOnSend(func(text string) {
		contact := a.active
		if contact.ID == 0 {
			return
		}
		convID := a.sess.OpenConversation()
		go func() {
			if err := a.queue.Send(a.ctx, convID, contact.ID, text); err != nil {
				a.logger.Warn("send failed", zap.Error(err))
			}
		}()
	})

	a.composer.SetOnActivity(func() {
		go a.signal.InputActivity(a.ctx)
	})
}

func (a *App) setupLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	chat := tview.NewFlex().
		AddItem(a.rosterList, 0, 1, true).
		AddItem(right, 0, 2, false)

	a.pages.AddPage("home", newHome(), true, true)
	a.pages.AddPage("chat", chat, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && currentPage == "chat" {
			if a.app.GetFocus() == a.composer.InputField {
				a.app.SetFocus(a.rosterList)
				return nil
			}
			a.showHome()
			return nil
		}

		// Let the composer handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer.
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.Handle(currentPage, event) {
			return nil
		}
		return event
	})
}

func newHome() tview.Primitive {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorderPadding(2, 0, 0, 0)
	tv.SetText("[::b]┬─┐┬┌─┐┌─┐┬  ┌─┐\n" +
		"├┬┘│├─┘├─┘│  ├┤\n" +
		"┴└─┴┴  ┴  ┴─┘└─┘[-:-:-]\n\n" +
		"[::d]enter: open chat   q: quit[-:-:-]")
	return tv
}

func (a *App) showChat() {
	a.sess.SetChatVisible(true)
	a.tracker.Reset()
	a.pages.SwitchToPage("chat")
	a.app.SetFocus(a.rosterList)
	a.refreshRoster()
}

func (a *App) showHome() {
	a.sess.SetChatVisible(false)
	a.pages.SwitchToPage("home")
}

func (a *App) openContact(c roster.Contact) {
	a.active = c
	a.sess.SetOpenConversation(c.ConversationID)
	a.thread.SetContact(displayName(c))
	a.thread.SetTyping(false)

	if c.ConversationID != 0 {
		a.tracker.MarkRead(c.ConversationID)
	}
	if c.Unread > 0 {
		zero := 0
		a.roster.Merge(c.ID, roster.Patch{Unread: &zero})
	}

	go func() {
		if err := a.store.Open(a.ctx, c.ConversationID); err != nil {
			a.logger.Warn("open conversation failed",
				zap.Int64("conversation_id", c.ConversationID), zap.Error(err))
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.Update(a.store.Messages())
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

func (a *App) loadOlder() {
	go func() {
		if err := a.store.LoadOlder(a.ctx); err != nil {
			a.logger.Warn("load older failed", zap.Error(err))
		}
	}()
}

func displayName(c roster.Contact) string {
	if name := c.FullName(); name != "" {
		return name
	}
	return c.Username
}

func (a *App) refreshRoster() {
	a.rosterList.Update(a.roster.Contacts(), a.roster.OnlineCount())
}

func (a *App) refreshThread() {
	a.thread.Update(a.store.Messages())
}

func (a *App) refreshStatus() {
	a.statusBar.SetState(a.mgr.State())
	a.statusBar.SetBadge(a.tracker.Badge())
}

// Run starts the TUI application.
func (a *App) Run() error {
	events, unsub := a.events.Subscribe("", 64)
	go a.watch(events, unsub)

	return a.app.Run()
}

// watch repaints from bus events until the app stops.
func (a *App) watch(events <-chan bus.Event, unsub func()) {
	defer unsub()

	clock := time.NewTicker(30 * time.Second)
	defer clock.Stop()

	for {
		select {
		case ev := <-events:
			a.handleEvent(ev)
		case <-clock.C:
			a.app.QueueUpdateDraw(a.refreshStatus)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(ev bus.Event) {
	switch ev.Kind {
	case bus.ConnStateChanged, bus.UnreadChanged:
		a.app.QueueUpdateDraw(a.refreshStatus)
	case bus.RosterUpdated:
		a.app.QueueUpdateDraw(a.refreshRoster)
	case bus.MessageReceived, bus.MessageUpdated:
		a.app.QueueUpdateDraw(a.refreshThread)
	case bus.ConversationLoaded:
		loaded, ok := ev.Payload.(convo.Loaded)
		a.app.QueueUpdateDraw(func() {
			if ok && !loaded.Initial {
				a.thread.UpdatePreservingScroll(a.store.Messages())
			} else {
				a.thread.Update(a.store.Messages())
			}
		})
	case bus.TypingStarted, bus.TypingStopped:
		ind, ok := ev.Payload.(typing.Indicator)
		if !ok || !a.sess.IsOpen(ind.ConversationID) {
			return
		}
		started := ev.Kind == bus.TypingStarted
		a.app.QueueUpdateDraw(func() {
			a.thread.SetTyping(started)
			a.refreshThread()
		})
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
