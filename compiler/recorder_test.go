package compiler

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// recorder: a Backend that keeps the emitted control-flow graph in memory
// and can execute it
// ---------------------------------------------------------------------------

type recValue struct {
	id int
}

type recOp struct {
	op      string // alloca alloc free load store add offset ne sext trunc br condbr call ret
	dst     *recValue
	args    []*recValue
	typ     Type
	imm     int64
	sym     string
	targets []*recBlock
}

type recBlock struct {
	name string
	ops  []recOp
}

// terminator returns the last op of the block, or the zero op.
func (b *recBlock) terminator() recOp {
	if len(b.ops) == 0 {
		return recOp{}
	}
	return b.ops[len(b.ops)-1]
}

type recorder struct {
	blocks []*recBlock
	cur    *recBlock
	nextID int

	// voidRead makes the read-character call produce no value.
	voidRead bool
	rt       Runtime
}

func newRecorder() *recorder {
	entry := &recBlock{name: "entry"}
	return &recorder{
		blocks: []*recBlock{entry},
		cur:    entry,
		rt:     DefaultRuntime(),
	}
}

func (r *recorder) value() *recValue {
	r.nextID++
	return &recValue{id: r.nextID}
}

func (r *recorder) emit(op recOp) *recValue {
	r.cur.ops = append(r.cur.ops, op)
	return op.dst
}

func vals(vs ...Value) []*recValue {
	out := make([]*recValue, len(vs))
	for i, v := range vs {
		out[i] = v.(*recValue)
	}
	return out
}

func (r *recorder) NewBlock(name string) Block {
	b := &recBlock{name: name}
	r.blocks = append(r.blocks, b)
	return b
}

func (r *recorder) SetInsertPoint(b Block) { r.cur = b.(*recBlock) }

func (r *recorder) Alloca(t Type, name string) Value {
	return r.emit(recOp{op: "alloca", dst: r.value(), typ: t, sym: name})
}

func (r *recorder) AllocateBytes(count int64) Value {
	return r.emit(recOp{op: "alloc", dst: r.value(), imm: count})
}

func (r *recorder) Free(addr Value) { r.emit(recOp{op: "free", args: vals(addr)}) }

func (r *recorder) Load(t Type, addr Value) Value {
	return r.emit(recOp{op: "load", dst: r.value(), typ: t, args: vals(addr)})
}

func (r *recorder) Store(addr, v Value) { r.emit(recOp{op: "store", args: vals(addr, v)}) }

func (r *recorder) AddInt(v Value, amt int8) Value {
	return r.emit(recOp{op: "add", dst: r.value(), args: vals(v), imm: int64(amt)})
}

func (r *recorder) Offset(addr Value, n int32) Value {
	return r.emit(recOp{op: "offset", dst: r.value(), args: vals(addr), imm: int64(n)})
}

func (r *recorder) NotZero(v Value) Value {
	return r.emit(recOp{op: "ne", dst: r.value(), args: vals(v)})
}

func (r *recorder) SignExtend(v Value, to Type) Value {
	return r.emit(recOp{op: "sext", dst: r.value(), args: vals(v), typ: to})
}

func (r *recorder) Truncate(v Value, to Type) Value {
	return r.emit(recOp{op: "trunc", dst: r.value(), args: vals(v), typ: to})
}

func (r *recorder) Br(target Block) {
	r.emit(recOp{op: "br", targets: []*recBlock{target.(*recBlock)}})
}

func (r *recorder) CondBr(cond Value, then, els Block) {
	r.emit(recOp{op: "condbr", args: vals(cond), targets: []*recBlock{then.(*recBlock), els.(*recBlock)}})
}

func (r *recorder) Call(symbol string, args ...Value) (Value, bool) {
	op := recOp{op: "call", sym: symbol, args: vals(args...)}
	if symbol == r.rt.Read && r.voidRead {
		r.emit(op)
		return nil, false
	}
	op.dst = r.value()
	return r.emit(op), true
}

func (r *recorder) Return(code int32) { r.emit(recOp{op: "ret", imm: int64(code)}) }

// count returns how many ops of the given kind were emitted.
func (r *recorder) count(op string) int {
	n := 0
	for _, b := range r.blocks {
		for _, o := range b.ops {
			if o.op == op {
				n++
			}
		}
	}
	return n
}

// block returns the block with the given name, or nil.
func (r *recorder) block(name string) *recBlock {
	for _, b := range r.blocks {
		if b.name == name {
			return b
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Execution of the recorded graph
// ---------------------------------------------------------------------------

const (
	tapeBase = 1 << 20
	maxSteps = 5_000_000
)

var errStepLimit = errors.New("step limit exceeded")

type machine struct {
	regs   map[int]int64
	slots  map[int64]int64
	tape   []uint8
	freed  bool
	input  []byte
	output []byte
	exit   int64
}

// run executes the recorded function from its entry block.
func (r *recorder) run(input []byte) (*machine, error) {
	m := &machine{
		regs:  make(map[int]int64),
		slots: make(map[int64]int64),
		input: input,
	}
	nextSlot := int64(16)
	blk := r.blocks[0]
	steps := 0

	for {
		var next *recBlock
		for _, o := range blk.ops {
			steps++
			if steps > maxSteps {
				return m, errStepLimit
			}
			arg := func(i int) int64 { return m.regs[o.args[i].id] }
			set := func(v int64) { m.regs[o.dst.id] = v }

			switch o.op {
			case "alloca":
				set(nextSlot)
				nextSlot += 16
			case "alloc":
				m.tape = make([]uint8, o.imm)
				set(tapeBase)
			case "free":
				if arg(0) != tapeBase {
					return m, fmt.Errorf("free of %#x, not the tape", arg(0))
				}
				m.freed = true
			case "load":
				addr := arg(0)
				if addr < tapeBase {
					set(m.slots[addr])
					break
				}
				i := addr - tapeBase
				if i < 0 || i >= int64(len(m.tape)) {
					return m, fmt.Errorf("load outside tape at cell %d", i)
				}
				set(int64(m.tape[i]))
			case "store":
				addr, v := arg(0), arg(1)
				if addr < tapeBase {
					m.slots[addr] = v
					break
				}
				i := addr - tapeBase
				if i < 0 || i >= int64(len(m.tape)) {
					return m, fmt.Errorf("store outside tape at cell %d", i)
				}
				m.tape[i] = uint8(v)
			case "add":
				set(int64(uint8(arg(0)) + uint8(int8(o.imm))))
			case "offset":
				set(arg(0) + o.imm)
			case "ne":
				if uint8(arg(0)) != 0 {
					set(1)
				} else {
					set(0)
				}
			case "sext":
				set(int64(int8(uint8(arg(0)))))
			case "trunc":
				set(int64(uint8(arg(0))))
			case "call":
				switch o.sym {
				case r.rt.Read:
					if len(m.input) == 0 {
						set(-1)
					} else {
						set(int64(m.input[0]))
						m.input = m.input[1:]
					}
				case r.rt.Write:
					m.output = append(m.output, byte(arg(0)))
					set(arg(0))
				default:
					return m, fmt.Errorf("call to unknown symbol %q", o.sym)
				}
			case "br":
				next = o.targets[0]
			case "condbr":
				if arg(0) != 0 {
					next = o.targets[0]
				} else {
					next = o.targets[1]
				}
			case "ret":
				m.exit = o.imm
				return m, nil
			}
			if next != nil {
				break
			}
		}
		if next == nil {
			return m, fmt.Errorf("block %q falls off its end", blk.name)
		}
		blk = next
	}
}

// cursor returns the cell index the cursor slot points at, given the
// slot's allocation order (0 = data, 1 = ptr).
func (m *machine) cursor() int64 {
	return m.slots[32] - tapeBase
}
