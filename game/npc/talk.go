// 对话回合：游标模式（Talk）与规则表模式（Reply）。
package npc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/npctalk/server/audit"
	"github.com/kasuganosora/npctalk/server/game/conversation"
	"github.com/kasuganosora/npctalk/server/plugin/hook"
	"go.uber.org/zap"
)

// notImplementedText 出现在回复行中时，该行替换为填充台词。
const notImplementedText = "not implemented"

// outcomeInterrupted 记录被 turn.typed 钩子中断的回合。
const outcomeInterrupted = "interrupted"

// Talk 以游标模式执行一个回合：从 s.PC 实时扫描脚本。
// 未匹配时从脚本第一个 KEY 再扫描一次；仍未匹配则回复填充台词且游标不动。
// 匹配成功游标前进；遇到 END 游标回到入口。
func (e *Executor) Talk(ctx context.Context, s *Session, typed string) ([]string, error) {
	return e.turn(ctx, s, ModeCursor, typed)
}

// Reply 以规则表模式执行一个回合：按存储顺序取第一条匹配规则，游标不参与。
func (e *Executor) Reply(ctx context.Context, s *Session, typed string) ([]string, error) {
	return e.turn(ctx, s, ModeLegacy, typed)
}

func (e *Executor) turn(ctx context.Context, s *Session, mode, typed string) (lines []string, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	entry := audit.TurnEntry{
		TraceID:   uuid.NewString(),
		SessionID: s.ID,
		NPC:       s.NPC,
		Player:    s.Input.Player,
		Mode:      mode,
		Typed:     typed,
		StartPC:   s.PC,
	}
	defer func() {
		entry.Lines = lines
		entry.NextPC = s.PC
		entry.Duration = time.Since(start)
		if err != nil {
			entry.Error = err.Error()
		}
		e.record(entry)
	}()

	d, err := e.dialect(s.Build)
	if err != nil {
		return nil, err
	}

	data := &hook.TurnData{SessionID: s.ID, NPC: s.NPC, Typed: typed}
	if e.runHooks(ctx, hook.TurnTyped, data) {
		s.turns++
		entry.Outcome = outcomeInterrupted
		return nil, nil
	}
	typed = data.Typed
	entry.Typed = typed

	mctx := conversation.BuildContext(s.Input)
	out, err := e.play(ctx, s, d, mode, typed, mctx)
	if err != nil {
		return nil, err
	}
	if !out.Matched() && e.spell {
		if fixed, ok := e.spellFix(ctx, s, d, typed); ok {
			if out, err = e.play(ctx, s, d, mode, fixed, mctx); err != nil {
				return nil, err
			}
			entry.Typed = fixed
		}
	}

	turn := s.turns
	lines = e.reply(out, turn, mctx)
	s.turns++
	entry.Outcome = out.Kind.String()
	entry.Keys = out.Keys

	data.Outcome = entry.Outcome
	data.Lines = lines
	e.runHooks(ctx, hook.TurnLines, data)
	return e.guard(data.Lines, turn, mctx), nil
}

func (e *Executor) play(ctx context.Context, s *Session, d dialect, mode, typed string, mctx *conversation.MacroContext) (conversation.Outcome, error) {
	if mode == ModeLegacy {
		return e.legacy(ctx, s, d, typed, mctx)
	}
	return e.cursor(s, d, typed, mctx), nil
}

func (e *Executor) cursor(s *Session, d dialect, typed string, mctx *conversation.MacroContext) conversation.Outcome {
	req := conversation.CursorRequest{
		Script:  s.Script,
		StartPC: s.PC,
		Typed:   typed,
		Context: mctx,
		Ops:     d.ops,
		Match:   e.match,
		Decoder: d.decoder,
	}
	out := conversation.RunFromKeyCursor(req)
	if !out.Matched() {
		// 回绕到顶层话题
		if first := conversation.FirstKeyPC(s.Script, s.MainPC, d.ops); first >= 0 && first < s.PC {
			req.StartPC = first
			out = conversation.RunFromKeyCursor(req)
		}
	}

	if out.StopOpcode != 0 {
		e.logger.Debug("cursor stopped on opcode",
			zap.String("npc", s.NPC),
			zap.String("opcode", d.ops.Name(out.StopOpcode)),
			zap.Int("pc", out.StopPC))
	}
	switch {
	case out.Ended:
		s.PC = s.MainPC
	case out.Matched():
		s.PC = out.NextPC
	}
	return out
}

func (e *Executor) legacy(ctx context.Context, s *Session, d dialect, typed string, mctx *conversation.MacroContext) (conversation.Outcome, error) {
	rules, err := e.rules.Rules(ctx, s.NPC, e.buildOf(s), s.Script, s.MainPC, d.ops)
	if err != nil {
		return conversation.Outcome{}, err
	}
	return conversation.LegacyReply(conversation.LegacyRequest{
		Typed:   typed,
		Rules:   rules,
		Context: mctx,
		Match:   e.match,
		Decoder: d.decoder,
	}), nil
}

// reply 把回合结果转成要显示的台词。
func (e *Executor) reply(out conversation.Outcome, turn int, mctx *conversation.MacroContext) []string {
	if out.Kind != conversation.OutcomeOK {
		return []string{e.filler(turn, mctx)}
	}
	return append([]string(nil), out.Lines...)
}

// guard 把含 notImplementedText 的行换成填充台词，在所有钩子之后执行。
func (e *Executor) guard(lines []string, turn int, mctx *conversation.MacroContext) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l), notImplementedText) {
			l = e.filler(turn, mctx)
		}
		out = append(out, l)
	}
	return out
}

// filler 按回合序号轮流选择填充台词。
func (e *Executor) filler(turn int, mctx *conversation.MacroContext) string {
	return conversation.Render(e.fillers[turn%len(e.fillers)], mctx)
}

// runHooks 执行事件钩子，返回是否被中断。
func (e *Executor) runHooks(ctx context.Context, event string, data *hook.TurnData) bool {
	if e.hooks == nil {
		return false
	}
	err := e.hooks.Run(ctx, event, data)
	if err == nil {
		return false
	}
	interrupted := errors.Is(err, hook.ErrInterrupt)
	if !interrupted {
		e.logger.Warn("turn hook failed",
			zap.String("event", event), zap.String("npc", data.NPC), zap.Error(err))
	}
	return interrupted
}

func (e *Executor) record(entry audit.TurnEntry) {
	e.logger.Debug("npc turn",
		zap.String("npc", entry.NPC),
		zap.String("session", entry.SessionID),
		zap.String("mode", entry.Mode),
		zap.String("typed", entry.Typed),
		zap.String("outcome", entry.Outcome),
		zap.Int("start_pc", entry.StartPC),
		zap.Int("next_pc", entry.NextPC),
		zap.Duration("took", entry.Duration))
	if e.audit != nil {
		e.audit.Log(entry)
	}
}
