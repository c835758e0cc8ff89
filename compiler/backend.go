package compiler

// ---------------------------------------------------------------------------
// Backend: the IR construction capability the code generator drives
// ---------------------------------------------------------------------------

// Value is an opaque handle to an IR value produced by a Backend.
type Value interface{}

// Block is an opaque handle to a basic block of the entry function.
type Block interface{}

// Type selects the width of a loaded, extended or truncated value.
type Type int

const (
	Byte    Type = iota // 8-bit cell
	Int32               // runtime I/O integers
	Pointer             // address of a cell
)

func (t Type) String() string {
	switch t {
	case Byte:
		return "i8"
	case Int32:
		return "i32"
	case Pointer:
		return "ptr"
	}
	return "invalid"
}

// Backend appends instructions at an implicit insertion point inside the
// program's entry function. Calls are ordered side effects; a Backend is
// used by one goroutine at a time.
type Backend interface {
	// NewBlock appends a basic block to the entry function.
	NewBlock(name string) Block
	// SetInsertPoint moves the insertion point to the end of b.
	SetInsertPoint(b Block)

	// Alloca reserves a stack slot holding a value of type t.
	Alloca(t Type, name string) Value
	// AllocateBytes emits a zeroed heap allocation of count bytes.
	AllocateBytes(count int64) Value
	// Free releases an allocation made by AllocateBytes.
	Free(addr Value)

	Load(t Type, addr Value) Value
	Store(addr, v Value)

	// AddInt adds a constant to an 8-bit value, wrapping modulo 256.
	AddInt(v Value, amt int8) Value
	// Offset advances a cell address by n one-byte elements.
	Offset(addr Value, n int32) Value
	// NotZero compares an 8-bit value against zero.
	NotZero(v Value) Value

	SignExtend(v Value, to Type) Value
	Truncate(v Value, to Type) Value

	Br(target Block)
	CondBr(cond Value, then, els Block)

	// Call invokes an external runtime function. ok is false when the
	// callee produces no value.
	Call(symbol string, args ...Value) (result Value, ok bool)

	// Return terminates the entry function with the given exit code.
	Return(code int32)
}
