package npc

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kasuganosora/npctalk/server/audit"
	"github.com/kasuganosora/npctalk/server/game/conversation"
	"github.com/kasuganosora/npctalk/server/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- 通用辅助函数 ----

func nopLogger() *zap.Logger { return zap.NewNop() }

var testOps = conversation.OpcodeMap{
	AskTop: 0xF7,
	Get:    0xFB,
	Key:    0xEF,
	Res:    0xF6,
	EndRes: 0xEE,
	End:    0xB6,
}

const (
	opKey    = byte(0xEF)
	opRes    = byte(0xF6)
	opEndRes = byte(0xEE)
	opEnd    = byte(0xB6)
)

// build 拼接字节与字符串片段为脚本字节。
func build(parts ...any) []byte {
	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case byte:
			out = append(out, v)
		case string:
			out = append(out, v...)
		}
	}
	return out
}

// topic 生成 KEY keys RES body ENDRES。
func topic(keys, body string) []byte {
	return build(opKey, keys, opRes, body, opEndRes)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ---- mockStore：ScriptStore 的测试 mock ----

type mockStore struct {
	mu      sync.Mutex
	scripts map[string]*model.NPCScript
}

func newMockStore(recs ...*model.NPCScript) *mockStore {
	m := &mockStore{scripts: make(map[string]*model.NPCScript)}
	for _, r := range recs {
		m.scripts[r.NPC] = r
	}
	return m
}

func (m *mockStore) Get(_ context.Context, npc string) (*model.NPCScript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.scripts[normalizeNPC(npc)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoScript, npc)
	}
	return r, nil
}

func (m *mockStore) Put(_ context.Context, s *model.NPCScript) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[normalizeNPC(s.NPC)] = s
	return true, nil
}

func (m *mockStore) List(_ context.Context) ([]model.NPCScript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.NPCScript
	for _, r := range m.scripts {
		out = append(out, *r)
	}
	return out, nil
}

// ---- fakeRecorder：audit.Recorder 的测试 mock ----

type fakeRecorder struct {
	mu      sync.Mutex
	entries []audit.TurnEntry
}

func (f *fakeRecorder) Log(e audit.TurnEntry) {
	f.mu.Lock()
	f.entries = append(f.entries, e)
	f.mu.Unlock()
}

func (f *fakeRecorder) last(t *testing.T) audit.TurnEntry {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.entries)
	return f.entries[len(f.entries)-1]
}

// newTestExecutor 创建只有 u6 一个版本的 Executor。
func newTestExecutor(t *testing.T, store ScriptStore, mutate func(*Options)) *Executor {
	t.Helper()
	opts := Options{
		DefaultBuild: "u6",
		Builds:       map[string]conversation.OpcodeMap{"u6": testOps},
		Fillers:      []string{"Thou art confusing me, $P.", "I know not."},
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(store, opts, nopLogger())
	require.NoError(t, err)
	return e
}

// newTestSession 创建不限速的会话。
func newTestSession(script []byte) *Session {
	return NewSession("iolo", script, 0, conversation.ContextInput{
		Player: "Avatar",
		Target: "Iolo",
	}, 0, 0)
}
