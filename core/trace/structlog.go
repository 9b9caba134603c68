package trace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Result is a decoded struct-logger trace as returned by
// debug_traceTransaction with the default tracer.
type Result struct {
	Gas         uint64
	Failed      bool
	ReturnValue string
	Steps       []Step
}

type structLogResult struct {
	Gas         uint64      `json:"gas"`
	Failed      bool        `json:"failed"`
	ReturnValue string      `json:"returnValue"`
	StructLogs  []structLog `json:"structLogs"`
}

type structLog struct {
	Pc      uint64   `json:"pc"`
	Op      string   `json:"op"`
	Gas     uint64   `json:"gas"`
	GasCost uint64   `json:"gasCost"`
	Depth   int      `json:"depth"`
	Stack   []string `json:"stack"`
}

// DecodeStructLogs parses a struct-logger result. Stack words are accepted
// both as 0x-prefixed quantities and as the zero-padded 64 digit form older
// nodes emit.
func DecodeStructLogs(data []byte) (*Result, error) {
	var res structLogResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrace, err)
	}
	out := &Result{
		Gas:         res.Gas,
		Failed:      res.Failed,
		ReturnValue: res.ReturnValue,
		Steps:       make([]Step, len(res.StructLogs)),
	}
	for i, l := range res.StructLogs {
		op, err := parseOp(l.Op)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrMalformedTrace, i, err)
		}
		st := Step{
			Index:   i,
			PC:      l.Pc,
			Op:      op,
			Gas:     l.Gas,
			GasCost: l.GasCost,
			Depth:   l.Depth,
		}
		if len(l.Stack) > 0 {
			st.Stack = make([]uint256.Int, len(l.Stack))
			for j, word := range l.Stack {
				if err := setWord(&st.Stack[j], word); err != nil {
					return nil, fmt.Errorf("%w: step %d stack[%d]: %v", ErrMalformedTrace, i, j, err)
				}
			}
		}
		out.Steps[i] = st
	}
	return out, nil
}

func parseOp(name string) (cfg.ByteCode, error) {
	if op, ok := cfg.OpByName(name); ok {
		return op, nil
	}
	// Undefined opcodes are printed as "opcode 0xef not defined".
	if s, ok := strings.CutPrefix(name, "opcode "); ok {
		s = strings.TrimSuffix(s, " not defined")
		if v, err := strconv.ParseUint(s, 0, 8); err == nil {
			return cfg.ByteCode(v), nil
		}
	}
	return 0, fmt.Errorf("unknown opcode %q", name)
}

func setWord(w *uint256.Int, s string) error {
	b := common.FromHex(s)
	if len(b) > 32 {
		return fmt.Errorf("word %q exceeds 32 bytes", s)
	}
	w.SetBytes(b)
	return nil
}
