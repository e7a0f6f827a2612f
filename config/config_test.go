package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "u6", cfg.Dialog.Build)
	assert.Equal(t, "cursor", cfg.Dialog.Mode)
	assert.Equal(t, "cp437", cfg.Dialog.TextEncoding)
	assert.Equal(t, 10*time.Minute, cfg.Dialog.RuleCacheTTL)
	assert.NotEmpty(t, cfg.Dialog.FillerLines)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 30*time.Second, cfg.Cache.LocalGCInterval)
	assert.Equal(t, 2, cfg.Dialog.ScriptPool)
	assert.Equal(t, 200*time.Millisecond, cfg.Dialog.ScriptTimeout)
	assert.Empty(t, cfg.Dialog.Hooks)
	assert.False(t, cfg.Dialog.Spellcheck)

	ops, err := cfg.Dialog.Opcodes("")
	require.NoError(t, err)
	assert.Equal(t, byte(0xEF), ops.Key)
	assert.Equal(t, byte(0xF6), ops.Res)
	assert.Equal(t, byte(0xEE), ops.EndRes)
}

func TestLoad_FileOverridesAndExtraBuild(t *testing.T) {
	path := writeConfig(t, `
server:
  debug: true
dialog:
  build: alt
  mode: legacy
  hooks:
    - event: turn.typed
      file: hooks/alias.js
      priority: 5
      when: npc == "iolo"
  builds:
    alt:
      asktop: 0x01
      get: 0x02
      key: 0x03
      res: 0x04
      endres: 0x05
      end: 0x06
database:
  mode: mysql
  mysql_dsn: "user:pw@tcp(localhost:3306)/npc"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "legacy", cfg.Dialog.Mode)
	assert.Equal(t, "mysql", cfg.Database.Mode)
	require.Len(t, cfg.Dialog.Hooks, 1)
	assert.Equal(t, HookScript{Event: "turn.typed", File: "hooks/alias.js", Priority: 5, When: `npc == "iolo"`}, cfg.Dialog.Hooks[0])

	ops, err := cfg.Dialog.Opcodes("")
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), ops.Key)
	assert.Equal(t, byte(0x06), ops.End)
}

func TestLoad_UnknownBuild(t *testing.T) {
	path := writeConfig(t, "dialog:\n  build: nope\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnknownBuild)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestOpcodes_RejectsBadBuilds(t *testing.T) {
	d := DialogConfig{Builds: map[string]OpcodeConfig{
		"wide": {AskTop: 1, Get: 2, Key: 300, Res: 4, EndRes: 5, End: 6},
		"dup":  {AskTop: 1, Get: 2, Key: 3, Res: 3, EndRes: 5, End: 6},
	}}
	_, err := d.Opcodes("wide")
	assert.Error(t, err)
	_, err = d.Opcodes("dup")
	assert.Error(t, err)
}

func TestOpcodeMaps(t *testing.T) {
	d := DialogConfig{Builds: map[string]OpcodeConfig{
		"u6":  {AskTop: 0xF7, Get: 0xFB, Key: 0xEF, Res: 0xF6, EndRes: 0xEE, End: 0xB6},
		"alt": {AskTop: 1, Get: 2, Key: 3, Res: 4, EndRes: 5, End: 6},
	}}
	maps, err := d.OpcodeMaps()
	require.NoError(t, err)
	assert.Len(t, maps, 2)
	assert.Equal(t, byte(3), maps["alt"].Key)

	d.Builds["bad"] = OpcodeConfig{AskTop: 1, Get: 1, Key: 3, Res: 4, EndRes: 5, End: 6}
	_, err = d.OpcodeMaps()
	assert.Error(t, err)
}
