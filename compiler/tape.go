package compiler

// DefaultTapeSize is the number of cells of the runtime tape.
const DefaultTapeSize = 30000

// Tape describes the memory the generated program allocates at entry: a
// zero-initialized buffer of Size one-byte cells. The cursor is never
// bounds-checked; staying inside the tape is the program's responsibility.
type Tape struct {
	Size int64
}

// Runtime names the C-compatible functions the generated program links
// against.
type Runtime struct {
	Read  string // int read(void), e.g. getchar
	Write string // int write(int), e.g. putchar
	Alloc string // void *alloc(size_t n, size_t size), e.g. calloc
	Free  string // void free(void *)
}

// DefaultRuntime returns the libc symbol set.
func DefaultRuntime() Runtime {
	return Runtime{
		Read:  "getchar",
		Write: "putchar",
		Alloc: "calloc",
		Free:  "free",
	}
}

// WithDefaults fills empty symbol names from DefaultRuntime.
func (r Runtime) WithDefaults() Runtime {
	d := DefaultRuntime()
	if r.Read == "" {
		r.Read = d.Read
	}
	if r.Write == "" {
		r.Write = d.Write
	}
	if r.Alloc == "" {
		r.Alloc = d.Alloc
	}
	if r.Free == "" {
		r.Free = d.Free
	}
	return r
}

// emitPrologue allocates the tape and returns the data and cursor slots.
// Both slots start out holding the tape base address.
func emitPrologue(b Backend, tape Tape) (data, cursor Value) {
	data = b.Alloca(Pointer, "data")
	cursor = b.Alloca(Pointer, "ptr")

	base := b.AllocateBytes(tape.Size)
	b.Store(data, base)
	b.Store(cursor, base)
	return data, cursor
}

// emitEpilogue releases the tape and returns 0 from the entry function.
func emitEpilogue(b Backend, data Value) {
	b.Free(b.Load(Pointer, data))
	b.Return(0)
}
