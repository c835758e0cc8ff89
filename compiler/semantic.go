package compiler

// Check reports every bracket mismatch in src without generating code:
// each `]` that closes nothing, then each `[` left open at end of input,
// outermost first. A nil result means the program compiles.
func Check(src string) []*Error {
	var (
		errs  []*Error
		loops LoopStack
	)
	_ = Scan(src, func(cmd Command, pos Position) error {
		switch cmd {
		case CmdOpen:
			loops.Push(LoopContext{Pos: pos, Depth: loops.Len() + 1})
		case CmdClose:
			if _, ok := loops.Pop(); !ok {
				errs = append(errs, errorAt(ErrUnmatchedCloseBracket, pos, "no loop is open"))
			}
		}
		return nil
	})
	for _, lc := range loops.Open() {
		errs = append(errs, errorAt(ErrUnmatchedOpenBracket, lc.Pos, "loop is never closed"))
	}
	return errs
}

// Depths returns, for each bracket offset in src, the nesting depth of the
// loop it belongs to. Unmatched `]` get depth 0.
func Depths(src string) map[int]int {
	depths := make(map[int]int)
	var loops LoopStack
	_ = Scan(src, func(cmd Command, pos Position) error {
		switch cmd {
		case CmdOpen:
			lc := LoopContext{Pos: pos, Depth: loops.Len() + 1}
			loops.Push(lc)
			depths[pos.Offset] = lc.Depth
		case CmdClose:
			lc, _ := loops.Pop()
			depths[pos.Offset] = lc.Depth
		}
		return nil
	})
	return depths
}
