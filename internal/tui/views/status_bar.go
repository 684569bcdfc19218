package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/brunodmn/ripple/internal/conn"
)

// StatusBar displays the profile, connection state and unread badge.
type StatusBar struct {
	*tview.TextView
	profile string
	state   conn.State
	badge   string
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetState updates the connection state display.
func (sb *StatusBar) SetState(state conn.State) {
	sb.state = state
	sb.render()
}

// SetBadge updates the unread badge, empty hides it.
func (sb *StatusBar) SetBadge(badge string) {
	sb.badge = badge
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	state := string(sb.state)
	switch sb.state {
	case conn.Open:
		state = "[green]" + state + "[-]"
	case conn.Reconnecting:
		state = "[red]DISCONNECTED[-]"
	default:
		state = "[yellow]" + state + "[-]"
	}

	badge := ""
	if sb.badge != "" {
		badge = fmt.Sprintf(" | [::b](%s)[-:-:-]", sb.badge)
	}

	clock := time.Now().Format("15:04")
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s%s | %s", sb.profile, state, badge, clock)
	_, _ = fmt.Fprint(sb, line)
}
