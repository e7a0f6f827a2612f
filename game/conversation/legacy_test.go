package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoBytes() BytesDecoder {
	return BytesDecoderFunc(func(body []byte) []string { return []string{string(body)} })
}

func TestLegacyReply_EmptyRulesIsNoMatch(t *testing.T) {
	for _, typed := range []string{"", "job", "*"} {
		out := LegacyReply(LegacyRequest{Typed: typed, Decoder: echoBytes()})
		assert.Equal(t, OutcomeNoMatch, out.Kind)
		assert.Equal(t, -1, out.RuleIndex)
	}
}

func TestLegacyReply_DecoderWithoutLinesIsUnimplemented(t *testing.T) {
	rules := ExtractRules(jobNameScript(), 0, testOps)
	silent := BytesDecoderFunc(func([]byte) []string { return nil })

	out := LegacyReply(LegacyRequest{Typed: "job", Rules: rules, Decoder: silent})
	assert.Equal(t, OutcomeUnimplemented, out.Kind)
	assert.Equal(t, []string{"job"}, out.Keys)
	assert.Empty(t, out.Lines)

	out = LegacyReply(LegacyRequest{Typed: "job", Rules: rules})
	assert.Equal(t, OutcomeUnimplemented, out.Kind, "missing decoder")
}

func TestLegacyReply_FirstRuleWins(t *testing.T) {
	s := build(
		opKey, "job", opRes, "first", opEndRes,
		opKey, "jo", opRes, "second", opEndRes,
		opKey, "*", opRes, "catch", opEndRes,
	)
	rules := ExtractRules(s, 0, testOps)

	out := LegacyReply(LegacyRequest{Typed: "job", Rules: rules, Decoder: echoBytes()})
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, []string{"first"}, out.Lines)
	assert.Equal(t, 0, out.RuleIndex)

	out = LegacyReply(LegacyRequest{Typed: "joke", Rules: rules, Decoder: echoBytes()})
	assert.Equal(t, []string{"second"}, out.Lines)

	out = LegacyReply(LegacyRequest{Typed: "weather", Rules: rules, Decoder: echoBytes()})
	assert.Equal(t, []string{"catch"}, out.Lines)
	assert.Equal(t, "*", out.Keyword)
}

func TestLegacyReply_SubTopicsAlwaysReachable(t *testing.T) {
	s := build(
		opKey, "rune", opRes, "Which rune?", opKey, "valor", opRes, "Valor it is.", opEndRes,
	)
	rules := ExtractRules(s, 0, testOps)

	out := LegacyReply(LegacyRequest{Typed: "valor", Rules: rules, Decoder: textDecoder()})
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, []string{"Valor it is."}, out.Lines)
	assert.Equal(t, 1, out.RuleIndex)
}

func TestLegacyReply_RendersThroughInjectedRenderer(t *testing.T) {
	rules := ExtractRules(build(opKey, "name", opRes, "I am $N, @friend", opEndRes), 0, testOps)
	ctx := BuildContext(ContextInput{Target: "Iolo"})

	out := LegacyReply(LegacyRequest{Typed: "name", Rules: rules, Context: ctx, Decoder: echoBytes()})
	assert.Equal(t, []string{"I am Iolo, friend"}, out.Lines)

	out = LegacyReply(LegacyRequest{
		Typed:   "name",
		Rules:   rules,
		Context: ctx,
		Decoder: echoBytes(),
		Render:  func(line string, _ *MacroContext) string { return strings.ToLower(line) },
	})
	assert.Equal(t, []string{"i am $n, @friend"}, out.Lines)
}
