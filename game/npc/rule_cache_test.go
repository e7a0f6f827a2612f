package npc

import (
	"context"
	"testing"
	"time"

	"github.com/kasuganosora/npctalk/server/cache"
	"github.com/kasuganosora/npctalk/server/game/conversation"
	"github.com/kasuganosora/npctalk/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleKey_ContentAddressed(t *testing.T) {
	a := topic("job", "Bard.")
	b := topic("job", "Bard!")

	assert.Equal(t, RuleKey("u6", a, 0), RuleKey("u6", append([]byte(nil), a...), 0))
	assert.NotEqual(t, RuleKey("u6", a, 0), RuleKey("u6", b, 0))
	assert.NotEqual(t, RuleKey("u6", a, 0), RuleKey("u6", a, 1))
	assert.NotEqual(t, RuleKey("u6", a, 0), RuleKey("u7", a, 0))
	assert.Regexp(t, `^rules:u6:[0-9a-f]{64}:0$`, RuleKey("u6", a, 0))
}

func TestRuleCache_MissThenHit(t *testing.T) {
	c := testutil.SetupTestCache(t)
	rc := NewRuleCache(c, time.Minute, nopLogger())
	ctx := context.Background()
	script := concat(topic("job", "Bard."), topic("name", "Iolo."))

	rules, err := rc.Rules(ctx, "iolo", "u6", script, 0, testOps)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	_, err = c.Get(ctx, RuleKey("u6", script, 0))
	require.NoError(t, err)

	cached, err := rc.Rules(ctx, "iolo", "u6", script, 0, testOps)
	require.NoError(t, err)
	assert.Equal(t, rules, cached)
	assert.Equal(t, []byte("Bard."), cached[0].ResponseBytes)
}

func TestRuleCache_CorruptEntryReextracted(t *testing.T) {
	c := testutil.SetupTestCache(t)
	rc := NewRuleCache(c, 0, nopLogger())
	ctx := context.Background()
	script := topic("job", "Bard.")

	require.NoError(t, c.Set(ctx, RuleKey("u6", script, 0), "{not json", 0))

	rules, err := rc.Rules(ctx, "iolo", "u6", script, 0, testOps)
	require.NoError(t, err)
	assert.Equal(t, conversation.ExtractRules(script, 0, testOps), rules)
}

func TestRuleCache_Invalidate(t *testing.T) {
	c := testutil.SetupTestCache(t)
	rc := NewRuleCache(c, 0, nopLogger())
	ctx := context.Background()
	script := topic("job", "Bard.")
	key := RuleKey("u6", script, 0)

	_, err := rc.Rules(ctx, "iolo", "u6", script, 0, testOps)
	require.NoError(t, err)

	require.NoError(t, rc.Invalidate(ctx, "iolo"))
	_, err = c.Get(ctx, key)
	assert.True(t, cache.IsNotFound(err))
}

func TestRuleCache_NilExtractsDirectly(t *testing.T) {
	var rc *RuleCache
	script := topic("job", "Bard.")

	rules, err := rc.Rules(context.Background(), "iolo", "u6", script, 0, testOps)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.NoError(t, rc.Invalidate(context.Background(), "iolo"))
}

func TestReply_UsesRuleCache(t *testing.T) {
	c := testutil.SetupTestCache(t)
	rc := NewRuleCache(c, time.Minute, nopLogger())
	e := newTestExecutor(t, newMockStore(), func(o *Options) { o.Rules = rc })
	script := topic("job", "Bard.")
	s := newTestSession(script)

	lines, err := e.Reply(context.Background(), s, "job")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bard."}, lines)

	_, err = c.Get(context.Background(), RuleKey("u6", script, 0))
	assert.NoError(t, err)
}

func TestRuleCache_HitRefreshesTTL(t *testing.T) {
	c := testutil.SetupTestCache(t)
	rc := NewRuleCache(c, 200*time.Millisecond, nopLogger())
	ctx := context.Background()
	script := topic("job", "Bard.")
	key := RuleKey("u6", script, 0)

	_, err := rc.Rules(ctx, "iolo", "u6", script, 0, testOps)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)
	_, err = rc.Rules(ctx, "iolo", "u6", script, 0, testOps)
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)
	_, err = c.Get(ctx, key)
	assert.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	_, err = c.Get(ctx, key)
	assert.True(t, cache.IsNotFound(err))
}
