package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/olekukonko/tablewriter"
)

// Table prints one row per block with its outgoing edges.
type Table struct {
	Options
}

func (t *Table) Render(w io.Writer, c *cfg.CFG) error {
	if t.Title != "" {
		if _, err := fmt.Fprintln(w, t.Title); err != nil {
			return err
		}
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Block", "Range", "Terminator", "Visits", "Gas", "Successors", "Tags"})
	table.SetAutoWrapText(false)
	for _, b := range c.Blocks() {
		var succ []string
		for _, e := range c.Successors(b.ID) {
			s := fmt.Sprintf("B%d %s", e.To, e.Kind)
			if c.Kind() != cfg.KindStatic {
				s += fmt.Sprintf(" x%d", e.Weight)
			}
			succ = append(succ, s)
		}
		name := fmt.Sprintf("B%d", b.ID)
		if b.ID == c.EntryID() {
			name += "*"
		}
		if c.IsUnresolved(b.ID) {
			name += "!"
		}
		table.Append([]string{
			name,
			fmt.Sprintf("%#x-%#x", b.Start, b.End),
			b.Terminator.String(),
			fmt.Sprint(c.Visits(b.ID)),
			fmt.Sprint(c.Gas(b.ID)),
			strings.Join(succ, ", "),
			strings.Join(tagNames(t.Tags[b.ID]), " "),
		})
	}
	table.SetFooter([]string{c.Kind().String(), c.CodeHash().TerminalString(),
		"", fmt.Sprint(c.TotalWeight()), "", fmt.Sprintf("%d edges", c.NumEdges()), ""})
	table.Render()
	return nil
}
