package conversation

import (
	"fmt"
	"io"
	"strings"
)

// Disassembler prints the topic tree of a script in a readable form.
type Disassembler struct {
	w   io.Writer
	ops OpcodeMap
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer, ops OpcodeMap) *Disassembler {
	return &Disassembler{w: w, ops: ops}
}

// Disassemble writes one line per rule reachable from mainPC, indented by
// nesting depth, preceded by a header with the first KEY pc.
func (d *Disassembler) Disassemble(script []byte, mainPC int) error {
	tree := ExtractTree(script, mainPC, d.ops)
	if _, err := fmt.Fprintf(d.w, "script size=%d main=%04X first_key=%d rules=%d\n",
		len(script), mainPC, FirstKeyPC(script, mainPC, d.ops), len(tree.Rules)); err != nil {
		return err
	}
	for i, r := range tree.Rules {
		indent := strings.Repeat("  ", tree.Depth(i))
		if _, err := fmt.Fprintf(d.w, "%s%04X [%04X..%04X] %s -> %d bytes\n",
			indent, r.KeyPC, r.ResponseStartPC, r.ResponseEndPC,
			strings.Join(r.Keys, ","), len(r.ResponseBytes)); err != nil {
			return err
		}
	}
	return nil
}
