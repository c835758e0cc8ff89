package compiler

// ---------------------------------------------------------------------------
// Cell instructions: + - > < . ,
// ---------------------------------------------------------------------------

// EmitAdd adds amt to the cell under the cursor. The addition is done at
// 8 bits so it wraps modulo 256.
func EmitAdd(b Backend, cursor Value, amt int8) {
	cell := b.Load(Pointer, cursor)
	v := b.Load(Byte, cell)
	b.Store(cell, b.AddInt(v, amt))
}

// EmitMove shifts the cursor by amt cells. No bounds check is emitted.
func EmitMove(b Backend, cursor Value, amt int32) {
	cell := b.Load(Pointer, cursor)
	b.Store(cursor, b.Offset(cell, amt))
}

// EmitOutput writes the cell under the cursor through the runtime's
// write-character function. The call's result is discarded.
func EmitOutput(b Backend, rt Runtime, cursor Value) {
	cell := b.Load(Pointer, cursor)
	v := b.Load(Byte, cell)
	b.Call(rt.Write, b.SignExtend(v, Int32))
}

// EmitInput reads one character through the runtime's read-character
// function and stores its low 8 bits in the cell under the cursor.
func EmitInput(b Backend, rt Runtime, cursor Value) error {
	c, ok := b.Call(rt.Read)
	if !ok {
		return ErrIoBridge
	}
	v := b.Truncate(c, Byte)
	cell := b.Load(Pointer, cursor)
	b.Store(cell, v)
	return nil
}
