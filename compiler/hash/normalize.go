package hash

import (
	"github.com/Benricheson101/bfc/compiler"
)

// ---------------------------------------------------------------------------
// Normalization: program text → op list
//
// Comments and layout are dropped and runs of the same counted command are
// merged. Programs with equal op lists compile to identical code.
// ---------------------------------------------------------------------------

// Op is one normalized operation.
type Op struct {
	Tag   byte
	Count uint32 // run length for counted ops; 0 otherwise
}

var commandTags = map[compiler.Command]byte{
	compiler.CmdIncr:   TagIncr,
	compiler.CmdDecr:   TagDecr,
	compiler.CmdRight:  TagRight,
	compiler.CmdLeft:   TagLeft,
	compiler.CmdOutput: TagOutput,
	compiler.CmdInput:  TagInput,
	compiler.CmdOpen:   TagOpen,
	compiler.CmdClose:  TagClose,
}

// counted reports whether tag is serialized with a run length.
func counted(tag byte) bool {
	return tag >= TagIncr && tag <= TagLeft
}

// Normalize converts program text into its op list.
func Normalize(src string) []Op {
	var ops []Op
	_ = compiler.Scan(src, func(cmd compiler.Command, _ compiler.Position) error {
		tag := commandTags[cmd]
		if !counted(tag) {
			ops = append(ops, Op{Tag: tag})
			return nil
		}
		if n := len(ops); n > 0 && ops[n-1].Tag == tag {
			ops[n-1].Count++
			return nil
		}
		ops = append(ops, Op{Tag: tag, Count: 1})
		return nil
	})
	return ops
}
