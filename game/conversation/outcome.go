package conversation

// OutcomeKind tags the result of one match attempt.
type OutcomeKind int

const (
	// OutcomeNoMatch: no topic keyword matched the input.
	OutcomeNoMatch OutcomeKind = iota
	// OutcomeOK: a topic matched and its response rendered to lines.
	OutcomeOK
	// OutcomeUnimplemented: a topic matched but no lines could be decoded
	// from its response. Callers must not surface diagnostic text for it.
	OutcomeUnimplemented
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeUnimplemented:
		return "unimplemented"
	}
	return "no-match"
}

// Outcome is produced per match attempt and consumed immediately.
type Outcome struct {
	Kind OutcomeKind

	Lines   []string
	Keys    []string // keywords of the matched topic
	Keyword string   // the keyword that matched

	// Cursor runtime only.
	NextPC     int
	StopOpcode byte
	StopPC     int
	Ended      bool

	// Legacy runtime only: index of the matched rule.
	RuleIndex int
}

// Matched reports whether a topic was selected, decodable or not.
func (o Outcome) Matched() bool {
	return o.Kind != OutcomeNoMatch
}

// RenderFunc renders one decoded line against the turn's macro context.
type RenderFunc func(line string, ctx *MacroContext) string

func renderAll(lines []string, ctx *MacroContext, render RenderFunc) []string {
	if render == nil {
		render = Render
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = render(l, ctx)
	}
	return out
}
