// 规则表缓存：ExtractRules 的结果按脚本内容寻址。
package npc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kasuganosora/npctalk/server/cache"
	"github.com/kasuganosora/npctalk/server/game/conversation"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// RuleCache 以 cache.Cache 缓存规则表。键为 rules:<build>:<blake2b>:<mainPC>，
// 同一脚本内容在任意进程中得到相同的键；每个 NPC 的键另记在索引哈希中以便失效。
type RuleCache struct {
	c      cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewRuleCache 创建 RuleCache。ttl <= 0 表示不过期；否则每次命中都会续期。
func NewRuleCache(c cache.Cache, ttl time.Duration, logger *zap.Logger) *RuleCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleCache{c: c, ttl: ttl, logger: logger}
}

// HashScript 返回脚本的 blake2b-256 十六进制摘要。
func HashScript(script []byte) string {
	sum := blake2b.Sum256(script)
	return hex.EncodeToString(sum[:])
}

// RuleKey 返回规则表的缓存键。
func RuleKey(build string, script []byte, mainPC int) string {
	return fmt.Sprintf("rules:%s:%s:%d", build, HashScript(script), mainPC)
}

func indexKey(npc string) string { return "rules:index:" + npc }

// Rules 返回脚本的规则表，未命中时提取并写回缓存。
// 缓存故障只记录日志，不影响结果；nil RuleCache 每次直接提取。
func (rc *RuleCache) Rules(ctx context.Context, npc, build string, script []byte, mainPC int, ops conversation.OpcodeMap) ([]conversation.Rule, error) {
	if rc == nil || rc.c == nil {
		return conversation.ExtractRules(script, mainPC, ops), nil
	}
	key := RuleKey(build, script, mainPC)

	raw, err := rc.c.Get(ctx, key)
	switch {
	case err == nil:
		var rules []conversation.Rule
		if err := json.Unmarshal([]byte(raw), &rules); err == nil {
			rc.touch(ctx, key)
			return rules, nil
		}
		rc.logger.Warn("rule cache: corrupt entry", zap.String("key", key))
	case !cache.IsNotFound(err):
		rc.logger.Warn("rule cache: get failed", zap.String("key", key), zap.Error(err))
	}

	rules := conversation.ExtractRules(script, mainPC, ops)
	data, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("rule cache: encode %s: %w", key, err)
	}
	if err := rc.c.Set(ctx, key, string(data), rc.ttl); err != nil {
		rc.logger.Warn("rule cache: set failed", zap.String("key", key), zap.Error(err))
		return rules, nil
	}
	if err := rc.c.HSet(ctx, indexKey(npc), key, build); err != nil {
		rc.logger.Warn("rule cache: index failed", zap.String("npc", npc), zap.Error(err))
	}
	return rules, nil
}

// touch 命中后按 ttl 续期。
func (rc *RuleCache) touch(ctx context.Context, key string) {
	if rc.ttl <= 0 {
		return
	}
	if err := rc.c.Expire(ctx, key, rc.ttl); err != nil && !cache.IsNotFound(err) {
		rc.logger.Warn("rule cache: expire failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 删除 npc 的全部缓存规则表。脚本重新导入后调用。
func (rc *RuleCache) Invalidate(ctx context.Context, npc string) error {
	if rc == nil || rc.c == nil {
		return nil
	}
	idx := indexKey(npc)
	entries, err := rc.c.HGetAll(ctx, idx)
	if err != nil && !cache.IsNotFound(err) {
		return fmt.Errorf("rule cache: index %s: %w", npc, err)
	}
	keys := make([]string, 0, len(entries)+1)
	for k := range entries {
		keys = append(keys, k)
	}
	keys = append(keys, idx)
	return rc.c.Del(ctx, keys...)
}
