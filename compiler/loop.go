package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Loop controller: [ and ]
// ---------------------------------------------------------------------------

// LoopContext is one open `[` whose `]` has not been scanned yet.
type LoopContext struct {
	Test Block // re-entry point: cell != 0 ?
	Body Block // commands between the brackets
	Exit Block // fall-through after the loop

	Pos   Position // the `[`
	Depth int      // 1 for an outermost loop
}

// LoopStack holds the open loops, innermost last. The next `]` always
// closes the top entry.
type LoopStack struct {
	open  []LoopContext
	count int // loops opened so far, for block naming
}

// Len returns the current nesting depth.
func (s *LoopStack) Len() int {
	return len(s.open)
}

// Push records a newly opened loop.
func (s *LoopStack) Push(lc LoopContext) {
	s.open = append(s.open, lc)
}

// Pop removes and returns the innermost open loop.
func (s *LoopStack) Pop() (LoopContext, bool) {
	if len(s.open) == 0 {
		return LoopContext{}, false
	}
	lc := s.open[len(s.open)-1]
	s.open = s.open[:len(s.open)-1]
	return lc, true
}

// Peek returns the innermost open loop without removing it.
func (s *LoopStack) Peek() (LoopContext, bool) {
	if len(s.open) == 0 {
		return LoopContext{}, false
	}
	return s.open[len(s.open)-1], true
}

// Open returns the open loops, outermost first.
func (s *LoopStack) Open() []LoopContext {
	out := make([]LoopContext, len(s.open))
	copy(out, s.open)
	return out
}

// OpenLoop emits the test/body/exit skeleton for a `[` at pos:
//
//	br test
//	test: c = load *cursor; br c != 0, body, exit
//	body: <insertion point>
//
// and pushes the new context.
func (s *LoopStack) OpenLoop(b Backend, cursor Value, pos Position) LoopContext {
	s.count++
	depth := len(s.open) + 1
	lc := LoopContext{
		Test:  b.NewBlock(fmt.Sprintf("while_start.%d.%d", depth, s.count)),
		Body:  b.NewBlock(fmt.Sprintf("while_body.%d.%d", depth, s.count)),
		Exit:  b.NewBlock(fmt.Sprintf("while_end.%d.%d", depth, s.count)),
		Pos:   pos,
		Depth: depth,
	}

	b.Br(lc.Test)
	b.SetInsertPoint(lc.Test)

	cell := b.Load(Pointer, cursor)
	v := b.Load(Byte, cell)
	b.CondBr(b.NotZero(v), lc.Body, lc.Exit)

	b.SetInsertPoint(lc.Body)
	s.Push(lc)
	return lc
}

// CloseLoop closes the innermost loop for a `]` at pos: it branches from
// the end of the body back to the loop's test and continues in its exit
// block. With no open loop nothing is emitted and the result is an
// ErrUnmatchedCloseBracket error.
func (s *LoopStack) CloseLoop(b Backend, pos Position) (LoopContext, error) {
	lc, ok := s.Pop()
	if !ok {
		return LoopContext{}, errorAt(ErrUnmatchedCloseBracket, pos, "no loop is open")
	}
	b.Br(lc.Test)
	b.SetInsertPoint(lc.Exit)
	return lc, nil
}
