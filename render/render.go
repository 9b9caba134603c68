// Package render writes CFGs out as Graphviz DOT, JSON or a text table.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/bnb-chain/evmcfg/core/annotate"
	"github.com/bnb-chain/evmcfg/core/cfg"
)

// Renderer writes one CFG to w.
type Renderer interface {
	Render(w io.Writer, c *cfg.CFG) error
}

// Options are shared by every renderer. Renderers ignore what they cannot
// show.
type Options struct {
	Title string
	Fold  bool                     // collapse linear chains into one node
	Tags  map[int][]annotate.Match // block id -> matched instructions
}

// Formats lists the names New accepts.
var Formats = []string{"dot", "json", "table"}

// New returns the renderer for format.
func New(format string, opts Options) (Renderer, error) {
	switch strings.ToLower(format) {
	case "dot", "":
		return &DOT{Options: opts}, nil
	case "json":
		return &JSON{Options: opts, Indent: true}, nil
	case "table":
		return &Table{Options: opts}, nil
	}
	return nil, fmt.Errorf("unknown format %q, want one of %s", format, strings.Join(Formats, ", "))
}

func tagNames(tags []annotate.Match) []string {
	out := make([]string, len(tags))
	for i, m := range tags {
		out[i] = fmt.Sprintf("%s@%d", m.Op, m.Offset)
	}
	return out
}
