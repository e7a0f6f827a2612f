package npc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kasuganosora/npctalk/server/model"
	"gorm.io/gorm"
)

// ScriptStore 提供 NPC 脚本目录的读写。
// 从 Executor 中提取此接口以支持单元测试中的 mock 替换。
type ScriptStore interface {
	// Get 按 NPC 标识查询脚本，不存在返回 ErrNoScript。
	Get(ctx context.Context, npc string) (*model.NPCScript, error)
	// Put 写入脚本并返回是否有变化；内容与元数据都未变化时不写库。
	Put(ctx context.Context, script *model.NPCScript) (changed bool, err error)
	// List 按 NPC 标识排序返回全部脚本（不含字节）。
	List(ctx context.Context) ([]model.NPCScript, error)
}

// ---- gormScriptStore：基于 GORM 的 ScriptStore 默认实现 ----

type gormScriptStore struct {
	db *gorm.DB
}

// NewGormScriptStore 创建基于 GORM 的脚本目录。
func NewGormScriptStore(db *gorm.DB) ScriptStore {
	return &gormScriptStore{db: db}
}

func (s *gormScriptStore) Get(ctx context.Context, npc string) (*model.NPCScript, error) {
	var rec model.NPCScript
	err := s.db.WithContext(ctx).Where("npc = ?", normalizeNPC(npc)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNoScript, npc)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *gormScriptStore) Put(ctx context.Context, script *model.NPCScript) (bool, error) {
	script.NPC = normalizeNPC(script.NPC)
	if script.NPC == "" {
		return false, errors.New("npc: script without npc id")
	}
	script.Hash = HashScript(script.Bytes)
	script.Size = len(script.Bytes)

	var existing model.NPCScript
	err := s.db.WithContext(ctx).Where("npc = ?", script.NPC).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, s.db.WithContext(ctx).Create(script).Error
	}
	if err != nil {
		return false, err
	}

	script.ID = existing.ID
	script.CreatedAt = existing.CreatedAt
	if existing.Hash == script.Hash && existing.MainPC == script.MainPC &&
		existing.Build == script.Build && existing.Name == script.Name {
		return false, nil
	}
	return true, s.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"name":    script.Name,
		"build":   script.Build,
		"main_pc": script.MainPC,
		"hash":    script.Hash,
		"size":    script.Size,
		"bytes":   script.Bytes,
	}).Error
}

func (s *gormScriptStore) List(ctx context.Context) ([]model.NPCScript, error) {
	var recs []model.NPCScript
	err := s.db.WithContext(ctx).
		Omit("bytes").
		Order("npc").
		Find(&recs).Error
	return recs, err
}

func normalizeNPC(npc string) string {
	return strings.ToLower(strings.TrimSpace(npc))
}
