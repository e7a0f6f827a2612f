package conversation

// LegacyRequest is the input of LegacyReply. Match and Render default to
// KeyMatchesInput and Render when nil.
type LegacyRequest struct {
	Typed   string
	Rules   []Rule
	Context *MacroContext
	Match   KeyMatcher
	Render  RenderFunc
	Decoder BytesDecoder
}

// LegacyReply answers from a pre-extracted rule list: the first rule, in
// stored order, with a keyword matching Typed wins. A matched rule whose
// response decodes to nothing (or with no decoder at all) yields
// OutcomeUnimplemented, never an error.
func LegacyReply(req LegacyRequest) Outcome {
	for i, r := range req.Rules {
		kw, ok := anyKeyMatches(r.Keys, req.Typed, req.Match)
		if !ok {
			continue
		}
		out := Outcome{
			Kind:      OutcomeUnimplemented,
			Keys:      r.Keys,
			Keyword:   kw,
			RuleIndex: i,
		}
		if req.Decoder == nil {
			return out
		}
		lines := req.Decoder.DecodeResponseBytes(r.ResponseBytes)
		if len(lines) == 0 {
			return out
		}
		out.Kind = OutcomeOK
		out.Lines = renderAll(lines, req.Context, req.Render)
		return out
	}
	return Outcome{Kind: OutcomeNoMatch, RuleIndex: -1}
}
