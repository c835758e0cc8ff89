package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Codegen: translate a program to IR in one pass
// ---------------------------------------------------------------------------

// Options configures a compilation.
type Options struct {
	Tape    Tape
	Runtime Runtime

	// Logger receives debug output; defaults to the "bfc.compiler" logger.
	Logger commonlog.Logger
}

// DefaultOptions returns a 30000-cell tape with the libc runtime.
func DefaultOptions() Options {
	return Options{
		Tape:    Tape{Size: DefaultTapeSize},
		Runtime: DefaultRuntime(),
	}
}

// Compiler translates one program into the entry function of a Backend.
type Compiler struct {
	backend Backend
	tape    Tape
	rt      Runtime
	log     commonlog.Logger

	// Current compilation state
	data   Value // slot holding the tape base, for the final free
	cursor Value // slot holding the current cell address
	loops  LoopStack
}

// New creates a compiler that emits into b.
func New(b Backend, opts Options) *Compiler {
	if opts.Tape.Size <= 0 {
		opts.Tape.Size = DefaultTapeSize
	}
	if opts.Logger == nil {
		opts.Logger = commonlog.GetLogger("bfc.compiler")
	}
	return &Compiler{
		backend: b,
		tape:    opts.Tape,
		rt:      opts.Runtime.WithDefaults(),
		log:     opts.Logger,
	}
}

// Compile emits the whole program. It stops at the first error; the
// backend then holds an incomplete function and must not be lowered.
func (c *Compiler) Compile(src string) error {
	c.loops = LoopStack{}
	c.data, c.cursor = emitPrologue(c.backend, c.tape)

	if err := Scan(src, c.compileCommand); err != nil {
		return err
	}

	if lc, ok := c.loops.Peek(); ok {
		return errorAt(ErrUnmatchedOpenBracket, lc.Pos, "%d loop(s) still open at end of input", c.loops.Len())
	}

	emitEpilogue(c.backend, c.data)
	return nil
}

func (c *Compiler) compileCommand(cmd Command, pos Position) error {
	b := c.backend
	switch cmd {
	case CmdIncr:
		EmitAdd(b, c.cursor, 1)
	case CmdDecr:
		EmitAdd(b, c.cursor, -1)
	case CmdRight:
		EmitMove(b, c.cursor, 1)
	case CmdLeft:
		EmitMove(b, c.cursor, -1)
	case CmdOutput:
		EmitOutput(b, c.rt, c.cursor)
	case CmdInput:
		if err := EmitInput(b, c.rt, c.cursor); err != nil {
			return errorAt(err, pos, "%s() must return int", c.rt.Read)
		}
	case CmdOpen:
		lc := c.loops.OpenLoop(b, c.cursor, pos)
		c.log.Debugf("open loop at %s, depth %d", pos, lc.Depth)
	case CmdClose:
		lc, err := c.loops.CloseLoop(b, pos)
		if err != nil {
			return err
		}
		c.log.Debugf("close loop at %s (opened at %s)", pos, lc.Pos)
	default:
		return fmt.Errorf("unknown command %q at %s", byte(cmd), pos)
	}
	return nil
}

// Compile translates src into b with the given options.
func Compile(src string, b Backend, opts Options) error {
	return New(b, opts).Compile(src)
}
