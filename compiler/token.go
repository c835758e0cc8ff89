package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Commands of the source language
// ---------------------------------------------------------------------------

// Command is one of the eight characters that carry meaning in a program.
// Every other character is a comment.
type Command byte

const (
	CmdIncr   Command = '+'
	CmdDecr   Command = '-'
	CmdRight  Command = '>'
	CmdLeft   Command = '<'
	CmdOutput Command = '.'
	CmdInput  Command = ','
	CmdOpen   Command = '['
	CmdClose  Command = ']'
)

var commandNames = map[Command]string{
	CmdIncr:   "increment",
	CmdDecr:   "decrement",
	CmdRight:  "move right",
	CmdLeft:   "move left",
	CmdOutput: "output",
	CmdInput:  "input",
	CmdOpen:   "loop open",
	CmdClose:  "loop close",
}

var commandDocs = map[Command]string{
	CmdIncr:   "Add 1 to the current cell (wraps at 256).",
	CmdDecr:   "Subtract 1 from the current cell (wraps at 0).",
	CmdRight:  "Move the cursor one cell to the right.",
	CmdLeft:   "Move the cursor one cell to the left.",
	CmdOutput: "Write the current cell as a character.",
	CmdInput:  "Read one character into the current cell.",
	CmdOpen:   "Enter the loop if the current cell is nonzero, otherwise skip past the matching `]`.",
	CmdClose:  "Jump back to the matching `[` test.",
}

// ParseCommand maps a source character to its command.
func ParseCommand(r rune) (Command, bool) {
	if r > 0x7f {
		return 0, false
	}
	switch c := Command(r); c {
	case CmdIncr, CmdDecr, CmdRight, CmdLeft, CmdOutput, CmdInput, CmdOpen, CmdClose:
		return c, true
	}
	return 0, false
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", byte(c))
}

// Doc returns a one-line description of what the command does at run time.
func (c Command) Doc() string {
	return commandDocs[c]
}

// Position represents a location in source code.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number, counted in runes
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
