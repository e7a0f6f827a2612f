// Package conversation decodes keyword-triggered NPC dialog scripts and
// matches player input against them.
//
// A script is an immutable byte buffer addressed by zero-based pc offsets.
// The package never owns the buffer and keeps no state between calls.
package conversation

import (
	"errors"
	"fmt"
)

// ErrInvalidOpcodeMap is returned by OpcodeMap.Validate.
var ErrInvalidOpcodeMap = errors.New("conversation: invalid opcode map")

// keywordSeparator chains several keywords onto one rule.
const keywordSeparator = ','

// OpcodeMap binds the logical control opcodes to the byte values used by a
// particular game build. The values are configuration, not constants.
type OpcodeMap struct {
	AskTop byte `mapstructure:"asktop" json:"asktop" yaml:"asktop"`
	Get    byte `mapstructure:"get" json:"get" yaml:"get"`
	Key    byte `mapstructure:"key" json:"key" yaml:"key"`
	Res    byte `mapstructure:"res" json:"res" yaml:"res"`
	EndRes byte `mapstructure:"endres" json:"endres" yaml:"endres"`
	End    byte `mapstructure:"end" json:"end" yaml:"end"`
}

// Validate reports whether the six opcodes are pairwise distinct and none of
// them collides with the keyword separator.
func (m OpcodeMap) Validate() error {
	named := []struct {
		name string
		b    byte
	}{
		{"asktop", m.AskTop}, {"get", m.Get}, {"key", m.Key},
		{"res", m.Res}, {"endres", m.EndRes}, {"end", m.End},
	}
	seen := make(map[byte]string, len(named))
	for _, n := range named {
		if n.b == keywordSeparator {
			return fmt.Errorf("%w: %s collides with keyword separator", ErrInvalidOpcodeMap, n.name)
		}
		if prev, ok := seen[n.b]; ok {
			return fmt.Errorf("%w: %s and %s share byte 0x%02X", ErrInvalidOpcodeMap, prev, n.name, n.b)
		}
		seen[n.b] = n.name
	}
	return nil
}

// IsControl reports whether b is one of the mapped control opcodes.
func (m OpcodeMap) IsControl(b byte) bool {
	switch b {
	case m.AskTop, m.Get, m.Key, m.Res, m.EndRes, m.End:
		return true
	}
	return false
}

// Name returns the logical name of b, or "" when b is not a control opcode.
func (m OpcodeMap) Name(b byte) string {
	switch b {
	case m.Key:
		return "KEY"
	case m.Res:
		return "RES"
	case m.EndRes:
		return "ENDRES"
	case m.AskTop:
		return "ASKTOP"
	case m.Get:
		return "GET"
	case m.End:
		return "END"
	}
	return ""
}
