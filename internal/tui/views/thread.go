package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/brunodmn/ripple/internal/convo"
)

// Thread displays the open conversation.
type Thread struct {
	*tview.TextView
	contactName string
	typing      bool
}

// NewThread creates the message pane.
func NewThread() *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &Thread{TextView: tv}
}

// SetContact updates the title with the peer's name.
func (th *Thread) SetContact(name string) {
	th.contactName = name
	th.SetTitle(fmt.Sprintf(" %s ", name))
}

// SetTyping toggles the composing indicator under the last message.
func (th *Thread) SetTyping(typing bool) {
	th.typing = typing
}

// Update rewrites the pane and follows the newest message.
func (th *Thread) Update(msgs []convo.Message) {
	th.render(msgs)
	th.ScrollToEnd()
}

// UpdatePreservingScroll rewrites the pane after older history was
// prepended, keeping the message the user was reading where it is.
func (th *Thread) UpdatePreservingScroll(msgs []convo.Message) {
	before := th.GetOriginalLineCount()
	row, col := th.GetScrollOffset()
	th.render(msgs)
	delta := th.GetOriginalLineCount() - before
	if delta > 0 {
		th.ScrollTo(row+delta, col)
	}
}

func (th *Thread) render(msgs []convo.Message) {
	th.Clear()

	for _, m := range msgs {
		sender := th.contactName
		if m.Outgoing {
			sender = "You"
		}

		marker := ""
		switch m.State {
		case convo.Pending:
			marker = " [yellow]…[-]"
		case convo.Failed:
			marker = " [red]failed[-]"
		}

		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			sender, formatClock(m.SentAt), marker, sanitizeForTerminal(m.Content))
		_, _ = fmt.Fprint(th, line)
	}

	if th.typing {
		_, _ = fmt.Fprintf(th, "[::di]%s is typing...[-:-:-]\n", th.contactName)
	}
}
