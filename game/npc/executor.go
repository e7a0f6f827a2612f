// Package npc 驱动与 NPC 的逐回合对话：加载脚本、维护会话游标、
// 调用 conversation 运行时并渲染回复、记录审计日志。
package npc

import (
	"errors"
	"fmt"

	"github.com/kasuganosora/npctalk/server/audit"
	"github.com/kasuganosora/npctalk/server/game/conversation"
	"github.com/kasuganosora/npctalk/server/plugin/hook"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"gorm.io/gorm"
)

var (
	// ErrRateLimited 表示会话在短时间内发送了过多回合。
	ErrRateLimited = errors.New("npc: too many turns")
	// ErrNoScript 表示目录中没有该 NPC 的脚本。
	ErrNoScript = errors.New("npc: no script")
	// ErrUnknownBuild 表示脚本引用了未配置的操作码版本。
	ErrUnknownBuild = errors.New("npc: unknown opcode build")
)

// 对话模式。
const (
	ModeCursor = "cursor"
	ModeLegacy = "legacy"
)

// defaultFillers 在未配置填充台词时使用。
var defaultFillers = []string{"I cannot help thee with that."}

// ---- 执行选项 ----

// Options 配置 Executor。Builds 至少包含 DefaultBuild。
type Options struct {
	DefaultBuild string
	Builds       map[string]conversation.OpcodeMap
	Charset      encoding.Encoding // nil 表示仅 ASCII
	Fillers      []string

	TurnsPerSecond float64
	TurnBurst      int

	Match      conversation.KeyMatcher // nil 使用 KeyMatchesInput
	Spellcheck bool                    // 未匹配时按关键词表纠正拼写后重试
	Rules *RuleCache     // nil 则每回合现场提取
	Audit audit.Recorder // 可为 nil
	Hooks *hook.Center   // 可为 nil
}

// dialect 是一个操作码版本及对应的文本解码器。
type dialect struct {
	ops     conversation.OpcodeMap
	decoder *conversation.TextDecoder
}

// ---- Executor 核心结构体 ----

// Executor 为会话执行对话回合。它本身无状态，可被多个会话并发使用；
// 回合状态全部保存在 Session 中。
type Executor struct {
	store    ScriptStore
	dialects map[string]dialect
	build    string
	fillers  []string
	rps      float64
	burst    int
	match    conversation.KeyMatcher
	spell    bool
	rules    *RuleCache
	audit    audit.Recorder
	hooks    *hook.Center
	logger   *zap.Logger
}

// New 创建 Executor，接受 ScriptStore 接口以支持测试 mock。
func New(store ScriptStore, opts Options, logger *zap.Logger) (*Executor, error) {
	if _, ok := opts.Builds[opts.DefaultBuild]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuild, opts.DefaultBuild)
	}
	dialects := make(map[string]dialect, len(opts.Builds))
	for name, ops := range opts.Builds {
		if err := ops.Validate(); err != nil {
			return nil, fmt.Errorf("npc: build %q: %w", name, err)
		}
		if err := conversation.CheckCharset(opts.Charset, ops); err != nil {
			return nil, fmt.Errorf("npc: build %q: %w", name, err)
		}
		dialects[name] = dialect{
			ops:     ops,
			decoder: &conversation.TextDecoder{Ops: ops, Charset: opts.Charset},
		}
	}
	fillers := opts.Fillers
	if len(fillers) == 0 {
		fillers = defaultFillers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:    store,
		dialects: dialects,
		build:    opts.DefaultBuild,
		fillers:  fillers,
		rps:      opts.TurnsPerSecond,
		burst:    opts.TurnBurst,
		match:    opts.Match,
		spell:    opts.Spellcheck,
		rules:    opts.Rules,
		audit:    opts.Audit,
		hooks:    opts.Hooks,
		logger:   logger,
	}, nil
}

// NewWithDB 创建使用 GORM 脚本目录的 Executor（生产环境便捷构造函数）。
func NewWithDB(db *gorm.DB, opts Options, logger *zap.Logger) (*Executor, error) {
	return New(NewGormScriptStore(db), opts, logger)
}

// Store 返回脚本目录。
func (e *Executor) Store() ScriptStore { return e.store }

func (e *Executor) buildOf(s *Session) string {
	if s.Build == "" {
		return e.build
	}
	return s.Build
}

func (e *Executor) dialect(build string) (dialect, error) {
	if build == "" {
		build = e.build
	}
	d, ok := e.dialects[build]
	if !ok {
		return dialect{}, fmt.Errorf("%w: %q", ErrUnknownBuild, build)
	}
	return d, nil
}
