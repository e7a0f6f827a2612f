package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kasuganosora/npctalk/server/config"
	dbadapter "github.com/kasuganosora/npctalk/server/db"
	"github.com/kasuganosora/npctalk/server/plugin/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupWorkspace 写入配置、npcs.json 与一个脚本，返回配置路径。
func setupWorkspace(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "dialog")
	require.NoError(t, os.MkdirAll(data, 0o755))

	const key, res, endres, end = "\xEF", "\xF6", "\xEE", "\xB6"
	script := key + "name" + res + "I am $N." + endres +
		key + "job,work" + res + "I play the lute, $G." + endres +
		key + "bye" + res + "Farewell, $P." + end + endres
	require.NoError(t, os.WriteFile(filepath.Join(data, "iolo.bin"), []byte(script), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "npcs.json"),
		[]byte(`[{"npc": "iolo", "name": "Iolo", "file": "iolo.bin", "main_pc": 0}]`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(data, "alias.js"),
		[]byte(`if (turn.typed === "occupation") { turn.typed = "job"; }`), 0o644))

	cfg := "dialog:\n  data_path: " + data + "\n  turns_per_second: 0\n" + extra +
		"database:\n  sqlite_path: " + filepath.Join(dir, "db", "npctalk.db") + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	// 命令行变量是包级状态，每次执行前恢复默认值
	cfgPath, dumpFormat = "", "text"
	talkMode, talkPlayer, talkGreeting, talkParty, talkHour = "", "", "", 1, -1
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_ImportDumpTalk(t *testing.T) {
	cfg := setupWorkspace(t, "")

	out, err := run(t, "", "--config", cfg, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "1 imported, 0 unchanged")

	out, err = run(t, "", "--config", cfg, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "0 imported, 1 unchanged")

	out, err = run(t, "", "--config", cfg, "dump", "iolo", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "npc: iolo")
	assert.Contains(t, out, "- work")
	assert.Contains(t, out, "first_key_pc: 0")

	out, err = run(t, "", "--config", cfg, "dump", "iolo", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "rules=3")

	out, err = run(t, "name\n  what   is thy job\nweather\nbye\nname\n",
		"--config", cfg, "talk", "iolo", "--player", "Shamino", "--greeting", "Milord", "--mode", "cursor")
	require.NoError(t, err)
	assert.Contains(t, out, "I am Iolo.")
	assert.Contains(t, out, "I play the lute, milord.")
	assert.Contains(t, out, "Farewell, Shamino.")
	assert.Equal(t, 1, strings.Count(out, "I am Iolo."), "talk stops after bye")
}

func TestCLI_Errors(t *testing.T) {
	cfg := setupWorkspace(t, "")

	_, err := run(t, "", "--config", cfg, "dump", "nobody", "--format", "text")
	assert.Error(t, err)

	_, err = run(t, "", "--config", cfg, "import")
	require.NoError(t, err)
	_, err = run(t, "", "--config", cfg, "dump", "iolo", "--format", "xml")
	assert.Error(t, err)
	_, err = run(t, "", "--config", cfg, "talk", "iolo", "--mode", "chatty")
	assert.Error(t, err)
}

func TestCLI_ScriptHook(t *testing.T) {
	cfg := setupWorkspace(t, "  hooks:\n    - event: turn.typed\n      file: alias.js\n")

	_, err := run(t, "", "--config", cfg, "import")
	require.NoError(t, err)

	out, err := run(t, "occupation\nbye\n", "--config", cfg, "talk", "iolo", "--greeting", "milady", "--mode", "legacy")
	require.NoError(t, err)
	assert.Contains(t, out, "I play the lute, milady.")
}

func TestCLI_ScriptHookUnknownEvent(t *testing.T) {
	cfg := setupWorkspace(t, "  hooks:\n    - event: turn.end\n      file: alias.js\n")

	_, err := run(t, "", "--config", cfg, "import")
	require.NoError(t, err)
	_, err = run(t, "", "--config", cfg, "talk", "iolo")
	assert.Error(t, err)
}

func TestSqueezeSpace(t *testing.T) {
	d := &hook.TurnData{Typed: "  what \t is   thy job "}
	require.NoError(t, squeezeSpace(context.Background(), hook.TurnTyped, d))
	assert.Equal(t, "what is thy job", d.Typed)
}

func TestOpenApp_ClosesDBWhenCacheFails(t *testing.T) {
	cfgPath = setupWorkspace(t, "cache:\n  redis_addr: \"127.0.0.1:1\"\n")
	var opened *gorm.DB
	openDB = func(c config.DatabaseConfig) (*gorm.DB, error) {
		db, err := dbadapter.Open(c)
		opened = db
		return db, err
	}
	t.Cleanup(func() {
		openDB = dbadapter.Open
		cfgPath = ""
	})

	_, err := openApp()
	require.ErrorContains(t, err, "cache")
	require.NotNil(t, opened)

	sqlDB, err := opened.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}
