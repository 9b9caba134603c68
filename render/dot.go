package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bnb-chain/evmcfg/core/annotate"
	"github.com/bnb-chain/evmcfg/core/cfg"
)

var edgeColors = map[cfg.EdgeKind]string{
	cfg.EdgeFallthrough: "#939393",
	cfg.EdgeStaticJump:  "#575757",
	cfg.EdgeDynamicJump: "#0D47A1",
}

const (
	callFill  = "#81C784"
	storeFill = "#FFB74D"
	plainFill = "#ECEFF1"
)

// DOT renders a CFG for Graphviz. Blocks with call-family instructions are
// green, blocks that write storage orange. Blocks whose jump target is
// invalid get a red border and blocks with computed jumps a dashed one.
type DOT struct {
	Options
	RankDir string // TB when empty
}

func (d *DOT) Render(w io.Writer, c *cfg.CFG) error {
	bw := bufio.NewWriter(w)
	rankdir := d.RankDir
	if rankdir == "" {
		rankdir = "TB"
	}
	fmt.Fprintln(bw, "digraph CFG {")
	fmt.Fprintf(bw, "  rankdir=%s;\n", rankdir)
	fmt.Fprintln(bw, `  node [shape=record, fontname="monospace", fontsize=9, style=filled];`)
	fmt.Fprintln(bw, `  edge [fontname="monospace", fontsize=8];`)
	if d.Title != "" {
		fmt.Fprintf(bw, "  labelloc=\"t\";\n  label=\"%s\";\n", escapeDOT(d.Title))
	}

	groups := d.groups(c)
	owner := make(map[int]int, c.NumBlocks())
	for _, g := range groups {
		for _, id := range g {
			owner[id] = g[0]
		}
	}
	for _, g := range groups {
		d.node(bw, c, g)
	}
	for _, e := range c.Edges() {
		from, to := owner[e.From], owner[e.To]
		if from == to && e.To != from {
			continue // inside a folded chain
		}
		label := e.Kind.String()
		if c.Kind() != cfg.KindStatic {
			label = fmt.Sprintf("%s x%d", label, e.Weight)
		}
		fmt.Fprintf(bw, "  b%d -> b%d [label=\"%s\", color=\"%s\"];\n", from, to, label, edgeColors[e.Kind])
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func (d *DOT) groups(c *cfg.CFG) [][]int {
	if d.Fold {
		chains := cfg.FoldLinearChains(c)
		out := make([][]int, len(chains))
		for i, ch := range chains {
			out[i] = ch.Blocks
		}
		return out
	}
	blocks := c.Blocks()
	out := make([][]int, len(blocks))
	for i, b := range blocks {
		out[i] = []int{b.ID}
	}
	return out
}

func (d *DOT) node(w io.Writer, c *cfg.CFG, group []int) {
	bs := c.BlockSet()
	head, tail := bs.Block(group[0]), bs.Block(group[len(group)-1])

	var (
		gas    uint64
		tags   []annotate.Match
		instrs int
		dashed bool
		styles = []string{"filled"}
		border = "black"
	)
	for _, id := range group {
		gas += c.Gas(id)
		tags = append(tags, d.Tags[id]...)
		instrs += len(bs.Block(id).Instructions)
		if c.IsUnresolved(id) {
			border = "red"
		}
		dashed = dashed || bs.Block(id).Terminator == cfg.TermJumpDynamic
	}
	if dashed {
		styles = append(styles, "dashed")
	}
	if c.EntryID() == head.ID {
		styles = append(styles, "bold")
	}

	fields := []string{fmt.Sprintf("B%d", head.ID)}
	if len(group) > 1 {
		fields[0] = fmt.Sprintf("B%d..B%d (%d blocks)", head.ID, tail.ID, len(group))
	}
	fields = append(fields, fmt.Sprintf("[%#x, %#x) %d ins", head.Start, tail.End, instrs))
	if c.Kind() != cfg.KindStatic {
		fields = append(fields, fmt.Sprintf("visits %d | gas %d", c.Visits(head.ID), gas))
	}
	fields = append(fields, tail.Terminator.String())
	if len(tags) > 0 {
		fields = append(fields, strings.Join(tagNames(tags), " "))
	}
	label := make([]string, len(fields))
	for i, f := range fields {
		label[i] = escapeDOT(f)
	}
	fmt.Fprintf(w, "  b%d [label=\"{%s}\", fillcolor=\"%s\", color=\"%s\", style=\"%s\"];\n",
		head.ID, strings.Join(label, "|"), fill(tags), border, strings.Join(styles, ","))
}

func fill(tags []annotate.Match) string {
	color := plainFill
	for _, m := range tags {
		if m.Op.IsCall() {
			return callFill
		}
		if m.Op == cfg.SSTORE {
			color = storeFill
		}
	}
	return color
}

func escapeDOT(s string) string {
	r := strings.NewReplacer(`"`, `\"`, "|", `\|`, "{", `\{`, "}", `\}`, "<", `\<`, ">", `\>`, "\n", `\n`)
	return r.Replace(s)
}
