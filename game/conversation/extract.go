package conversation

import "strings"

// Rule is one keyword-triggered response. A rule whose response range lies
// inside another rule's response range is a sub-topic of that rule.
type Rule struct {
	Keys            []string `json:"keys" yaml:"keys"`
	KeyPC           int      `json:"key_pc" yaml:"key_pc"`
	ResponseStartPC int      `json:"response_start_pc" yaml:"response_start_pc"`
	ResponseEndPC   int      `json:"response_end_pc" yaml:"response_end_pc"`
	ResponseBytes   []byte   `json:"response_bytes" yaml:"-"`
}

// RuleTree is the flattened rule list plus the enclosing-rule index of every
// entry. Parent[i] is -1 for top-level topics.
type RuleTree struct {
	Rules  []Rule
	Parent []int
}

// Children returns the indexes of the direct sub-topics of rule i.
func (t RuleTree) Children(i int) []int {
	var out []int
	for j, p := range t.Parent {
		if p == i {
			out = append(out, j)
		}
	}
	return out
}

// Depth returns the nesting depth of rule i (0 for top-level topics).
func (t RuleTree) Depth(i int) int {
	d := 0
	for i >= 0 && i < len(t.Parent) {
		i = t.Parent[i]
		if i >= 0 {
			d++
		}
	}
	return d
}

// block is one KEY ... RES ... [ENDRES] unit.
type block struct {
	keyPC      int
	keys       []string
	bodyStart  int
	bodyEnd    int
	next       int // pc just past the block
	terminated bool
}

func (b block) usable() bool {
	return len(b.keys) > 0 && b.bodyEnd > b.bodyStart
}

// scanBlock parses the block whose KEY opcode sits at pc, never reading at
// or beyond end. An unterminated response runs to end.
func scanBlock(script []byte, pc, end int, ops OpcodeMap) block {
	b := block{keyPC: pc}
	b.keys, pc = collectKeys(script, pc+1, end, ops)
	b.bodyStart = pc
	for pc < end && script[pc] != ops.EndRes {
		pc++
	}
	b.bodyEnd = pc
	if pc < end {
		pc++
		b.terminated = true
	}
	b.next = pc
	return b
}

// collectKeys accumulates comma-separated keywords up to the RES opcode and
// returns the pc just past RES. Without a RES before end no keyword is
// returned.
func collectKeys(script []byte, pc, end int, ops OpcodeMap) ([]string, int) {
	var keys []string
	spanStart := pc
	for ; pc < end; pc++ {
		c := script[pc]
		if c == ops.Res {
			return appendKeyword(keys, script[spanStart:pc]), pc + 1
		}
		if c == keywordSeparator {
			keys = appendKeyword(keys, script[spanStart:pc])
			spanStart = pc + 1
		}
	}
	return nil, pc
}

func appendKeyword(keys []string, span []byte) []string {
	kw := strings.ToLower(strings.TrimSpace(string(span)))
	if kw == "" {
		return keys
	}
	for _, k := range keys {
		if k == kw {
			return keys
		}
	}
	return append(keys, kw)
}

func clampPC(pc, n int) int {
	if pc < 0 {
		return 0
	}
	if pc > n {
		return n
	}
	return pc
}

// FirstKeyPC returns the pc of the first KEY opcode at or after mainPC, or -1.
func FirstKeyPC(script []byte, mainPC int, ops OpcodeMap) int {
	for pc := clampPC(mainPC, len(script)); pc < len(script); pc++ {
		if script[pc] == ops.Key {
			return pc
		}
	}
	return -1
}

// ExtractRules flattens every keyword rule reachable from mainPC, nested
// sub-topics included, in preorder: a rule is followed by the rules found
// inside its response before the outer scan resumes.
func ExtractRules(script []byte, mainPC int, ops OpcodeMap) []Rule {
	return ExtractTree(script, mainPC, ops).Rules
}

// ExtractTree is ExtractRules with the parent index of every rule. It walks
// with an explicit stack so deeply nested scripts cannot exhaust the call
// stack.
func ExtractTree(script []byte, mainPC int, ops OpcodeMap) RuleTree {
	var tree RuleTree
	if len(script) == 0 {
		return tree
	}

	type frame struct {
		pc, end int
		parent  int
	}
	stack := []frame{{pc: clampPC(mainPC, len(script)), end: len(script), parent: -1}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.pc >= top.end {
			stack = stack[:len(stack)-1]
			continue
		}
		if script[top.pc] != ops.Key {
			top.pc++
			continue
		}

		b := scanBlock(script, top.pc, top.end, ops)
		top.pc = b.next
		if !b.usable() {
			continue
		}

		idx := len(tree.Rules)
		tree.Rules = append(tree.Rules, Rule{
			Keys:            b.keys,
			KeyPC:           b.keyPC,
			ResponseStartPC: b.bodyStart,
			ResponseEndPC:   b.bodyEnd,
			ResponseBytes:   script[b.bodyStart:b.bodyEnd],
		})
		tree.Parent = append(tree.Parent, top.parent)
		stack = append(stack, frame{pc: b.bodyStart, end: b.bodyEnd, parent: idx})
	}
	return tree
}
