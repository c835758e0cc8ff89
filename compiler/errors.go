package compiler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmatchedCloseBracket is reported for a `]` with no open loop.
	ErrUnmatchedCloseBracket = errors.New("unmatched `]`")

	// ErrUnmatchedOpenBracket is reported for a `[` still open at end of input.
	ErrUnmatchedOpenBracket = errors.New("unmatched `[`")

	// ErrIoBridge means the read-character runtime function produced no value.
	ErrIoBridge = errors.New("read-character call produced no value")

	// ErrBackendInit means no target machine could be set up for code generation.
	ErrBackendInit = errors.New("backend initialization failed")

	// ErrEmission means lowering the finished IR to the output format failed.
	ErrEmission = errors.New("emission failed")
)

// Error is a compilation failure tied to a source location.
type Error struct {
	Kind error
	Pos  Position
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %v: %s", e.Pos, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %v", e.Pos, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func errorAt(kind error, pos Position, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
