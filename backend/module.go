// Package backend builds LLVM IR for compiled programs and lowers it to
// object files or assembly with the LLVM static compiler.
package backend

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/Benricheson101/bfc/compiler"
)

// Module is an LLVM module holding one externally visible `main`. It
// implements compiler.Backend; the insertion point starts at main's entry
// block.
type Module struct {
	mod   *ir.Module
	main  *ir.Func
	cur   *ir.Block
	funcs map[string]*ir.Func
	rt    compiler.Runtime
}

// New creates a module named name with the runtime functions declared:
//
//	i8* calloc(i64, i64)
//	void free(i8*)
//	i32 getchar()
//	i32 putchar(i32)
func New(name string, rt compiler.Runtime) *Module {
	rt = rt.WithDefaults()
	m := &Module{
		mod:   ir.NewModule(),
		funcs: make(map[string]*ir.Func),
		rt:    rt,
	}
	m.mod.SourceFilename = name

	m.DeclareFunc(rt.Alloc, types.I8Ptr, ir.NewParam("count", types.I64), ir.NewParam("size", types.I64))
	m.DeclareFunc(rt.Free, types.Void, ir.NewParam("ptr", types.I8Ptr))
	m.DeclareFunc(rt.Read, types.I32)
	m.DeclareFunc(rt.Write, types.I32, ir.NewParam("c", types.I32))

	m.main = m.mod.NewFunc("main", types.I32)
	m.cur = m.main.NewBlock("entry")
	return m
}

// DeclareFunc declares (or redeclares) an external function callable
// through Call.
func (m *Module) DeclareFunc(name string, ret types.Type, params ...*ir.Param) *ir.Func {
	if f, ok := m.funcs[name]; ok {
		f.Sig.RetType = ret
		f.Params = params
		f.Sig.Params = paramTypes(params)
		return f
	}
	f := m.mod.NewFunc(name, ret, params...)
	m.funcs[name] = f
	return f
}

func paramTypes(params []*ir.Param) []types.Type {
	ts := make([]types.Type, len(params))
	for i, p := range params {
		ts[i] = p.Typ
	}
	return ts
}

// IR returns the module in LLVM assembly syntax.
func (m *Module) IR() string {
	return m.mod.String()
}

// SetTargetTriple records the target triple in the module header.
func (m *Module) SetTargetTriple(triple string) {
	m.mod.TargetTriple = triple
}

func llType(t compiler.Type) types.Type {
	switch t {
	case compiler.Byte:
		return types.I8
	case compiler.Int32:
		return types.I32
	case compiler.Pointer:
		return types.I8Ptr
	}
	panic(fmt.Sprintf("backend: invalid type %d", t))
}

func intType(t compiler.Type) *types.IntType {
	it, ok := llType(t).(*types.IntType)
	if !ok {
		panic(fmt.Sprintf("backend: %v is not an integer type", t))
	}
	return it
}

func val(v compiler.Value) value.Value {
	return v.(value.Value)
}

// ---------------------------------------------------------------------------
// compiler.Backend
// ---------------------------------------------------------------------------

func (m *Module) NewBlock(name string) compiler.Block {
	return m.main.NewBlock(name)
}

func (m *Module) SetInsertPoint(b compiler.Block) {
	m.cur = b.(*ir.Block)
}

func (m *Module) Alloca(t compiler.Type, name string) compiler.Value {
	inst := m.cur.NewAlloca(llType(t))
	inst.SetName(name)
	return inst
}

func (m *Module) AllocateBytes(count int64) compiler.Value {
	return m.cur.NewCall(m.funcs[m.rt.Alloc],
		constant.NewInt(types.I64, count),
		constant.NewInt(types.I64, 1))
}

func (m *Module) Free(addr compiler.Value) {
	m.cur.NewCall(m.funcs[m.rt.Free], val(addr))
}

func (m *Module) Load(t compiler.Type, addr compiler.Value) compiler.Value {
	return m.cur.NewLoad(llType(t), val(addr))
}

func (m *Module) Store(addr, v compiler.Value) {
	m.cur.NewStore(val(v), val(addr))
}

func (m *Module) AddInt(v compiler.Value, amt int8) compiler.Value {
	return m.cur.NewAdd(val(v), constant.NewInt(types.I8, int64(amt)))
}

func (m *Module) Offset(addr compiler.Value, n int32) compiler.Value {
	gep := m.cur.NewGetElementPtr(types.I8, val(addr), constant.NewInt(types.I32, int64(n)))
	gep.InBounds = true
	return gep
}

func (m *Module) NotZero(v compiler.Value) compiler.Value {
	return m.cur.NewICmp(enum.IPredNE, val(v), constant.NewInt(types.I8, 0))
}

func (m *Module) SignExtend(v compiler.Value, to compiler.Type) compiler.Value {
	return m.cur.NewSExt(val(v), intType(to))
}

func (m *Module) Truncate(v compiler.Value, to compiler.Type) compiler.Value {
	return m.cur.NewTrunc(val(v), intType(to))
}

func (m *Module) Br(target compiler.Block) {
	m.cur.NewBr(target.(*ir.Block))
}

func (m *Module) CondBr(cond compiler.Value, then, els compiler.Block) {
	m.cur.NewCondBr(val(cond), then.(*ir.Block), els.(*ir.Block))
}

// Call emits a call to a declared function. A void callee yields no value.
func (m *Module) Call(symbol string, args ...compiler.Value) (compiler.Value, bool) {
	f, ok := m.funcs[symbol]
	if !ok {
		panic(fmt.Sprintf("backend: call to undeclared function %q", symbol))
	}
	llArgs := make([]value.Value, len(args))
	for i, a := range args {
		llArgs[i] = val(a)
	}
	call := m.cur.NewCall(f, llArgs...)
	if _, isVoid := f.Sig.RetType.(*types.VoidType); isVoid {
		return nil, false
	}
	return call, true
}

func (m *Module) Return(code int32) {
	m.cur.NewRet(constant.NewInt(types.I32, int64(code)))
}
