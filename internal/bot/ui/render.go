// Package ui describes what the transport should show the user. The core
// never talks to the messaging platform directly; every operation returns a
// Render and the transport adapter turns it into actual messages and inline
// keyboards.
package ui

// Callback data understood by the dispatcher. Digit buttons carry the digit
// itself ("0".."9").
const (
	CallbackStats        = "stats"
	CallbackListUsers    = "list"
	CallbackSearch       = "search"
	CallbackBan          = "ban"
	CallbackEnterPhone   = "enter_phone"
	CallbackDownloadLink = "download_link"
)

type Button struct {
	Label string
	Data  string
}

// Render is one rendering instruction: message text plus an optional inline
// keyboard. Edit asks the transport to re-render the previous prompt in place
// (used for the live code echo) instead of sending a new message.
type Render struct {
	Text    string
	Buttons [][]Button
	Edit    bool

	// Media is an opaque reference to remote media the transport should
	// re-send alongside the text. Empty when there is none.
	Media string
}

// None reports whether there is nothing to display.
func (r Render) None() bool {
	return r.Text == "" && len(r.Buttons) == 0
}

// DigitKeyboard is the 1-9 + 0 keypad shown while a one-time code is being
// collected.
func DigitKeyboard() [][]Button {
	rows := make([][]Button, 0, 4)
	for _, digits := range []string{"123", "456", "789", "0"} {
		row := make([]Button, 0, len(digits))
		for _, d := range digits {
			row = append(row, Button{Label: string(d), Data: string(d)})
		}
		rows = append(rows, row)
	}
	return rows
}

func LoginKeyboard() [][]Button {
	return [][]Button{{{Label: "📱 Enter Phone", Data: CallbackEnterPhone}}}
}

func MediaKeyboard() [][]Button {
	return [][]Button{{{Label: "📥 Download Media", Data: CallbackDownloadLink}}}
}

func AdminKeyboard() [][]Button {
	return [][]Button{
		{{Label: "📊 Stats", Data: CallbackStats}, {Label: "📜 Users", Data: CallbackListUsers}},
		{{Label: "🔍 Search", Data: CallbackSearch}, {Label: "🚫 Ban", Data: CallbackBan}},
	}
}
