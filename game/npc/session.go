package npc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kasuganosora/npctalk/server/game/conversation"
	"golang.org/x/time/rate"
)

// Session 是一名玩家与一个 NPC 的对话状态。
// 同一会话的回合串行执行；不同会话互不影响。
type Session struct {
	ID     string
	NPC    string
	Build  string // 空表示 Executor 的默认版本
	Script []byte
	MainPC int
	PC     int // 下一回合的游标起点
	Input  conversation.ContextInput

	mu      sync.Mutex
	turns   int
	limiter *rate.Limiter
	speller *speller
}

// NewSession 创建从 mainPC 开始的会话。rps <= 0 表示不限速。
func NewSession(npc string, script []byte, mainPC int, input conversation.ContextInput, rps float64, burst int) *Session {
	if mainPC < 0 || mainPC > len(script) {
		mainPC = 0
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Session{
		ID:      uuid.NewString(),
		NPC:     strings.ToLower(npc),
		Script:  script,
		MainPC:  mainPC,
		PC:      mainPC,
		Input:   input,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Turns 返回已执行的回合数。
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// Reset 把游标移回入口。
func (s *Session) Reset() {
	s.mu.Lock()
	s.PC = s.MainPC
	s.mu.Unlock()
}

// Open 从脚本目录加载 npc 并创建会话。input.Target 为空时使用 NPC 的显示名。
func (e *Executor) Open(ctx context.Context, npc string, input conversation.ContextInput) (*Session, error) {
	rec, err := e.store.Get(ctx, npc)
	if err != nil {
		return nil, err
	}
	if _, err := e.dialect(rec.Build); err != nil {
		return nil, fmt.Errorf("npc %q: %w", rec.NPC, err)
	}
	if strings.TrimSpace(input.Target) == "" {
		input.Target = rec.Name
	}
	s := NewSession(rec.NPC, rec.Bytes, rec.MainPC, input, e.rps, e.burst)
	s.Build = rec.Build
	return s, nil
}
