package conversation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// VarSlots is the number of macro variable slots: '0'-'9' then 'A'-'Z'.
const VarSlots = 36

// Symbols with a derived value. Every other slot is left zero/empty.
const (
	SymbolCompanions = 'C' // party size without the player
	SymbolGreeting   = 'G' // form of address; VarInt holds the "milady" flag
	SymbolHour       = 'H'
	SymbolTarget     = 'N'
	SymbolObject     = 'O'
	SymbolPlayer     = 'P'
	SymbolTimeOfDay  = 'T'
)

// avatarSlot is always overwritten with the avatar name after every other
// slot has been derived. Scripts compiled for the original build rely on it.
const avatarSlot = 4

const (
	defaultGreeting = "milady"
	defaultPlayer   = "Avatar"
)

// ContextInput is the situational data of one conversation turn. Numeric
// fields accept int, int64, float64 or a decimal string; anything else
// counts as zero.
type ContextInput struct {
	Hour      any
	Player    string
	Target    string
	Greeting  string
	PartySize any
	ObjNum    any
	TalkFlags map[string]int
}

// MacroContext is the variable table one turn renders against.
type MacroContext struct {
	VarStr    [VarSlots]string
	VarInt    [VarSlots]int
	TalkFlags map[string]int
	ObjNum    int
}

// SymbolToIndex maps a one-character macro symbol to its slot: digits to
// 0-9, letters (either case) to 10-35. Anything else yields -1.
func SymbolToIndex(symbol string) int {
	if len(symbol) != 1 {
		return -1
	}
	c := symbol[0]
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	}
	return -1
}

func slot(symbol byte) int {
	return SymbolToIndex(string(symbol))
}

// TimeOfDay buckets an hour into morning, afternoon or evening.
func TimeOfDay(hour int) string {
	switch {
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	}
	return "evening"
}

// BuildContext derives a fresh MacroContext from in.
func BuildContext(in ContextInput) *MacroContext {
	ctx := &MacroContext{TalkFlags: make(map[string]int, len(in.TalkFlags))}
	for k, v := range in.TalkFlags {
		ctx.TalkFlags[k] = v
	}

	hour := coerceInt(in.Hour)
	party := coerceInt(in.PartySize)
	ctx.ObjNum = coerceInt(in.ObjNum)

	greeting := strings.TrimSpace(in.Greeting)
	if greeting == "" {
		greeting = defaultGreeting
	}
	player := strings.TrimSpace(in.Player)
	if player == "" {
		player = defaultPlayer
	}

	companions := party - 1
	if companions < 0 {
		companions = 0
	}
	miladyFlag := 0
	if strings.EqualFold(greeting, defaultGreeting) {
		miladyFlag = 1
	}

	ctx.set(SymbolGreeting, strings.ToLower(greeting), miladyFlag)
	ctx.set(SymbolTimeOfDay, TimeOfDay(hour), hour)
	ctx.set(SymbolHour, strconv.Itoa(hour), hour)
	ctx.set(SymbolPlayer, player, 0)
	ctx.set(SymbolTarget, strings.TrimSpace(in.Target), 0)
	ctx.set(SymbolCompanions, strconv.Itoa(companions), companions)
	ctx.set(SymbolObject, strconv.Itoa(ctx.ObjNum), ctx.ObjNum)

	ctx.VarStr[avatarSlot] = defaultPlayer
	return ctx
}

func (c *MacroContext) set(symbol byte, s string, n int) {
	i := slot(symbol)
	c.VarStr[i] = s
	c.VarInt[i] = n
}

// Str returns the string value bound to symbol, or "" for an unknown symbol.
func (c *MacroContext) Str(symbol string) string {
	i := SymbolToIndex(symbol)
	if c == nil || i < 0 || i >= VarSlots {
		return ""
	}
	return c.VarStr[i]
}

// Int returns the integer value bound to symbol, or 0 for an unknown symbol.
func (c *MacroContext) Int(symbol string) int {
	i := SymbolToIndex(symbol)
	if c == nil || i < 0 || i >= VarSlots {
		return 0
	}
	return c.VarInt[i]
}

var (
	macroRe  = regexp.MustCompile(`\$([0-9A-Za-z])`)
	atWordRe = regexp.MustCompile(`@(\w+)`)
)

// Render substitutes every $<symbol> in text from ctx, then strips the
// leading '@' from every @word, including words introduced by substitution.
func Render(text string, ctx *MacroContext) string {
	out := macroRe.ReplaceAllStringFunc(text, func(m string) string {
		return ctx.Str(m[1:])
	})
	return atWordRe.ReplaceAllString(out, "$1")
}

// coerceInt converts the loosely typed numeric inputs callers hand over.
func coerceInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f)
		}
	}
	return 0
}
