package conversation

// CursorRequest is the input of RunFromKeyCursor. Match and Render default
// to KeyMatchesInput and Render when nil.
type CursorRequest struct {
	Script  []byte
	StartPC int
	Typed   string
	Context *MacroContext
	Ops     OpcodeMap
	Match   KeyMatcher
	Render  RenderFunc
	Decoder ResponseDecoder
}

// RunFromKeyCursor scans the script live from StartPC and answers with the
// first topic that has a keyword matching Typed. Topics that do not match
// are skipped whole, sub-topics included.
//
// On a match NextPC is the pc to resume from on the next turn: just past
// the consumed response block, or the pc where the decoder stopped on a KEY
// or ASKTOP opcode inside the body, which makes the topic's sub-topics
// reachable. Malformed input never panics; an unterminated response runs to
// the end of the script.
func RunFromKeyCursor(req CursorRequest) Outcome {
	script, ops := req.Script, req.Ops
	end := len(script)
	pc := clampPC(req.StartPC, end)

	for pc < end {
		if script[pc] != ops.Key {
			pc++
			continue
		}
		b := scanBlock(script, pc, end, ops)
		pc = b.next
		if !b.usable() {
			continue
		}
		kw, ok := anyKeyMatches(b.keys, req.Typed, req.Match)
		if !ok {
			continue
		}
		return decodeBlock(req, b, kw)
	}
	return Outcome{Kind: OutcomeNoMatch}
}

func decodeBlock(req CursorRequest, b block, keyword string) Outcome {
	out := Outcome{
		Kind:    OutcomeUnimplemented,
		Keys:    b.keys,
		Keyword: keyword,
		NextPC:  b.next,
	}
	if req.Decoder == nil {
		return out
	}

	body := req.Script[b.bodyStart:b.bodyEnd]
	res := req.Decoder.DecodeResponse(body)
	if res.Stopped {
		stop := clampPC(res.StopPC, len(body))
		out.StopOpcode = res.StopOpcode
		out.StopPC = b.bodyStart + stop
		switch res.StopOpcode {
		case req.Ops.Key, req.Ops.AskTop:
			if stop < len(body) {
				out.NextPC = b.bodyStart + stop
			}
		case req.Ops.End:
			out.Ended = true
		}
	}

	if len(res.Lines) == 0 {
		return out
	}
	out.Kind = OutcomeOK
	out.Lines = renderAll(res.Lines, req.Context, req.Render)
	return out
}
