package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/brunodmn/ripple/internal/roster"
)

// RosterList is the contact sidebar.
type RosterList struct {
	*tview.Table
	contacts []roster.Contact
}

// NewRosterList creates the sidebar table.
func NewRosterList() *RosterList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Contacts ")

	return &RosterList{Table: table}
}

// Update refreshes the sidebar from a roster snapshot. The rows keep
// the model's order, online contacts first.
func (rl *RosterList) Update(contacts []roster.Contact, onlineCount int) {
	row, _ := rl.GetSelection()
	rl.contacts = contacts
	rl.Clear()

	rl.SetTitle(fmt.Sprintf(" Contacts (%d online) ", onlineCount))

	for i, c := range contacts {
		name := c.FullName()
		if name == "" {
			name = c.Username
		}
		dot := "[gray]○[-]"
		if c.Online {
			dot = "[green]●[-]"
		}
		if c.Unread > 0 {
			name = fmt.Sprintf("[::b]%s (%d)[-:-:-]", name, c.Unread)
		}

		preview := sanitizeForTerminal(truncate(c.LastMessagePreview, previewWidth))

		rl.SetCell(i, 0, tview.NewTableCell(" "+dot))
		rl.SetCell(i, 1, tview.NewTableCell(name).SetMaxWidth(20).SetExpansion(1))
		rl.SetCell(i, 2, tview.NewTableCell("[gray]"+preview+"[-]").SetMaxWidth(previewWidth).SetExpansion(2))
		rl.SetCell(i, 3, tview.NewTableCell(formatTimestamp(c.LastMessageAt)).SetMaxWidth(6))
	}

	if row >= len(contacts) {
		row = len(contacts) - 1
	}
	if row >= 0 {
		rl.Select(row, 0)
	}
}

// Selected returns the contact on the highlighted row.
func (rl *RosterList) Selected() (roster.Contact, bool) {
	row, _ := rl.GetSelection()
	if row < 0 || row >= len(rl.contacts) {
		return roster.Contact{}, false
	}
	return rl.contacts[row], true
}
