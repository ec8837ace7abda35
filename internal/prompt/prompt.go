package prompt

import (
	"fmt"
	"io"
	"strings"
)

// Prompter presents blocking questions and notices to the user. Calls are
// made from the event loop, so an open prompt suspends all other event
// processing until answered, matching the modal-dialog model of the feed
// client.
type Prompter interface {
	// Confirm asks a yes/no question and blocks for the answer.
	Confirm(msg string) bool
	// Alert shows a message the user merely acknowledges.
	Alert(msg string)
}

// Terminal prompts on a line-based terminal. It answers Confirm from the
// same line channel the command loop reads, which is safe because the loop
// is suspended while a prompt is open and therefore not competing for
// lines.
type Terminal struct {
	lines <-chan string
	out   io.Writer
}

func NewTerminal(lines <-chan string, out io.Writer) *Terminal {
	return &Terminal{lines: lines, out: out}
}

func (t *Terminal) Confirm(msg string) bool {
	fmt.Fprintf(t.out, "%s [y/N] ", msg)
	line, ok := <-t.lines
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (t *Terminal) Alert(msg string) {
	fmt.Fprintf(t.out, "! %s\n", msg)
}
