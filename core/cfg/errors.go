package cfg

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrMalformedBytecode is returned when the decoder cannot make progress,
	// i.e. a push immediate runs past the end of the code.
	ErrMalformedBytecode = errors.New("malformed bytecode")

	// ErrInvalidJumpTarget marks a constant jump whose destination is not a
	// JUMPDEST block start. It is recorded on the static CFG, never returned.
	ErrInvalidJumpTarget = errors.New("invalid jump target")

	// ErrTraceBytecodeMismatch is returned when a trace step cannot be placed
	// on the decoded instruction stream of the bytecode it claims to execute.
	ErrTraceBytecodeMismatch = errors.New("trace does not match bytecode")

	ErrCodeHashMismatch = errors.New("cfgs belong to different bytecode")
	ErrNoCFG            = errors.New("nothing to merge")
)

// BuildError is the structured form of every construction failure. It names
// the bytecode, and for trace failures the transaction and step, involved.
type BuildError struct {
	Kind     error
	CodeHash common.Hash
	TxHash   common.Hash
	Offset   uint64
	Step     int // index of the offending trace step, -1 if not trace related
	Detail   string
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%v: code=%s offset=%d", e.Kind, e.CodeHash.TerminalString(), e.Offset)
	if e.TxHash != (common.Hash{}) {
		msg += fmt.Sprintf(" tx=%s", e.TxHash.TerminalString())
	}
	if e.Step >= 0 {
		msg += fmt.Sprintf(" step=%d", e.Step)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Kind }
