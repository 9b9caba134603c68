package render

import (
	"encoding/json"
	"io"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// JSON writes {blocks, edges, entry_block}. Folding does not apply.
type JSON struct {
	Options
	Indent bool
}

type jsonGraph struct {
	Kind       string       `json:"kind"`
	CodeHash   common.Hash  `json:"code_hash"`
	TxHash     *common.Hash `json:"tx_hash,omitempty"`
	Blocks     []jsonBlock  `json:"blocks"`
	Edges      []jsonEdge   `json:"edges"`
	EntryBlock int          `json:"entry_block"`
}

type jsonBlock struct {
	ID           int            `json:"id"`
	Start        hexutil.Uint64 `json:"start"`
	End          hexutil.Uint64 `json:"end"`
	Terminator   string         `json:"terminator"`
	Instructions []string       `json:"instructions"`
	Visits       uint64         `json:"visits,omitempty"`
	Gas          uint64         `json:"gas,omitempty"`
	Unresolved   bool           `json:"unresolved,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
}

type jsonEdge struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Kind   string `json:"kind"`
	Weight uint64 `json:"weight"`
}

func (j *JSON) Render(w io.Writer, c *cfg.CFG) error {
	out := jsonGraph{
		Kind:       c.Kind().String(),
		CodeHash:   c.CodeHash(),
		Blocks:     make([]jsonBlock, 0, c.NumBlocks()),
		Edges:      make([]jsonEdge, 0, c.NumEdges()),
		EntryBlock: c.EntryID(),
	}
	if c.Kind() == cfg.KindExecuted {
		tx := c.TxHash()
		out.TxHash = &tx
	}
	for _, b := range c.Blocks() {
		blk := jsonBlock{
			ID:           b.ID,
			Start:        hexutil.Uint64(b.Start),
			End:          hexutil.Uint64(b.End),
			Terminator:   b.Terminator.String(),
			Instructions: make([]string, len(b.Instructions)),
			Visits:       c.Visits(b.ID),
			Gas:          c.Gas(b.ID),
			Unresolved:   c.IsUnresolved(b.ID),
		}
		for i, ins := range b.Instructions {
			blk.Instructions[i] = ins.String()
		}
		if tags := j.Tags[b.ID]; len(tags) > 0 {
			blk.Tags = tagNames(tags)
		}
		out.Blocks = append(out.Blocks, blk)
	}
	for _, e := range c.Edges() {
		out.Edges = append(out.Edges, jsonEdge{From: e.From, To: e.To, Kind: e.Kind.String(), Weight: e.Weight})
	}
	enc := json.NewEncoder(w)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
