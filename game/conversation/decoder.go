package conversation

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DecodeResult is what a ResponseDecoder made of one response body.
// StopPC is relative to the body handed to the decoder.
type DecodeResult struct {
	Lines      []string
	StopOpcode byte
	StopPC     int
	Stopped    bool
}

// ResponseDecoder turns a response body into displayable lines and reports
// where, and on which control opcode, it stopped. Used by the cursor runtime.
type ResponseDecoder interface {
	DecodeResponse(body []byte) DecodeResult
}

// BytesDecoder turns a response body into displayable lines. Used by the
// legacy reply runtime.
type BytesDecoder interface {
	DecodeResponseBytes(body []byte) []string
}

// ResponseDecoderFunc adapts a function to ResponseDecoder.
type ResponseDecoderFunc func(body []byte) DecodeResult

func (f ResponseDecoderFunc) DecodeResponse(body []byte) DecodeResult { return f(body) }

// BytesDecoderFunc adapts a function to BytesDecoder.
type BytesDecoderFunc func(body []byte) []string

func (f BytesDecoderFunc) DecodeResponseBytes(body []byte) []string { return f(body) }

// ErrCharsetConflict reports a text encoding whose byte sequences can
// contain the active control opcodes.
var ErrCharsetConflict = errors.New("conversation: text encoding overlaps opcodes")

// LookupCharset resolves a configured text encoding name. "" and "ascii"
// return a nil encoding: bytes above 0x7F are then dropped.
//
// The single-byte code pages give up the characters at the opcode bytes.
// UTF-8 is only usable when every opcode is below 0x80, since lead and
// continuation bytes cover 0x80-0xF4; see CheckCharset.
func LookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ascii":
		return nil, nil
	case "cp437", "ibm437":
		return charmap.CodePage437, nil
	case "macroman", "macintosh":
		return charmap.Macintosh, nil
	case "latin1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows1252":
		return charmap.Windows1252, nil
	case "utf8", "utf-8":
		return unicode.UTF8, nil
	}
	return nil, fmt.Errorf("conversation: unknown text encoding %q", name)
}

// TextDecoder is a partial response decoder: it only understands plain text
// and the six control opcodes. Text before the first control opcode becomes
// lines; everything after it is left to the caller.
type TextDecoder struct {
	Ops     OpcodeMap
	Charset encoding.Encoding
}

// CheckCharset fails with ErrCharsetConflict when enc is UTF-8 and ops maps
// a control opcode to a byte at or above 0x80.
func CheckCharset(enc encoding.Encoding, ops OpcodeMap) error {
	if enc != unicode.UTF8 {
		return nil
	}
	for _, b := range []byte{ops.AskTop, ops.Get, ops.Key, ops.Res, ops.EndRes, ops.End} {
		if b >= 0x80 {
			return fmt.Errorf("%w: %s is 0x%02X", ErrCharsetConflict, ops.Name(b), b)
		}
	}
	return nil
}

// NewTextDecoder returns a TextDecoder for ops using the named encoding.
func NewTextDecoder(ops OpcodeMap, charset string) (*TextDecoder, error) {
	enc, err := LookupCharset(charset)
	if err != nil {
		return nil, err
	}
	if err := CheckCharset(enc, ops); err != nil {
		return nil, err
	}
	return &TextDecoder{Ops: ops, Charset: enc}, nil
}

func (d *TextDecoder) DecodeResponse(body []byte) DecodeResult {
	var res DecodeResult
	var run []byte
	flush := func() {
		res.Lines = append(res.Lines, d.splitLines(run)...)
		run = run[:0]
	}

	for pc, c := range body {
		if d.Ops.IsControl(c) {
			flush()
			res.StopOpcode = c
			res.StopPC = pc
			res.Stopped = true
			return res
		}
		switch {
		case c == '\n' || c == '\r' || c == '\t':
			run = append(run, c)
		case c < 0x20 || c == 0x7F:
		case c < 0x80:
			run = append(run, c)
		case d.Charset != nil:
			run = append(run, c)
		}
	}
	flush()
	res.StopPC = len(body)
	return res
}

func (d *TextDecoder) DecodeResponseBytes(body []byte) []string {
	return d.DecodeResponse(body).Lines
}

func (d *TextDecoder) splitLines(run []byte) []string {
	if len(run) == 0 {
		return nil
	}
	text := string(run)
	if d.Charset != nil {
		if decoded, err := d.Charset.NewDecoder().Bytes(run); err == nil {
			text = string(decoded)
		}
	}
	var lines []string
	for _, l := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
