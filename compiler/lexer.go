package compiler

import (
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Scanner: single left-to-right pass over the program text
// ---------------------------------------------------------------------------

// Scanner yields the commands of a program in source order, skipping
// comment characters.
type Scanner struct {
	input string
	pos   int // byte offset of the next rune
	line  int // current line (1-based)
	col   int // column of the next rune (1-based)
}

// NewScanner creates a scanner for the given program text.
func NewScanner(input string) *Scanner {
	return &Scanner{
		input: input,
		line:  1,
		col:   1,
	}
}

// Next returns the next command and where it starts. ok is false once the
// input is exhausted.
func (s *Scanner) Next() (cmd Command, pos Position, ok bool) {
	for s.pos < len(s.input) {
		r, size := utf8.DecodeRuneInString(s.input[s.pos:])
		pos = Position{Offset: s.pos, Line: s.line, Column: s.col}

		s.pos += size
		if r == '\n' {
			s.line++
			s.col = 1
		} else {
			s.col++
		}

		if c, isCmd := ParseCommand(r); isCmd {
			return c, pos, true
		}
	}
	return 0, Position{}, false
}

// Scan calls fn for every command in src, stopping at the first error.
func Scan(src string, fn func(cmd Command, pos Position) error) error {
	s := NewScanner(src)
	for {
		cmd, pos, ok := s.Next()
		if !ok {
			return nil
		}
		if err := fn(cmd, pos); err != nil {
			return err
		}
	}
}
