package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/npctalk/server/game/conversation"
	"github.com/spf13/viper"
)

// ErrUnknownBuild is returned when dialog.build names no entry of dialog.builds.
var ErrUnknownBuild = errors.New("config: unknown opcode build")

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Dialog   DialogConfig   `mapstructure:"dialog"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type ServerConfig struct {
	Debug bool `mapstructure:"debug"`
}

type DialogConfig struct {
	DataPath     string                  `mapstructure:"data_path"` // directory holding npcs.json and script files
	Build        string                  `mapstructure:"build"`     // active entry of Builds
	Builds       map[string]OpcodeConfig `mapstructure:"builds"`
	TextEncoding string                  `mapstructure:"text_encoding"` // cp437 | macroman | latin1 | cp1252 | utf8 | ascii
	Mode         string                  `mapstructure:"mode"`          // cursor | legacy
	FillerLines  []string                `mapstructure:"filler_lines"`

	TurnsPerSecond float64       `mapstructure:"turns_per_second"`
	TurnBurst      int           `mapstructure:"turn_burst"`
	RuleCacheTTL   time.Duration `mapstructure:"rule_cache_ttl"`

	Hooks         []HookScript  `mapstructure:"hooks"`
	ScriptPool    int           `mapstructure:"script_pool"`
	ScriptTimeout time.Duration `mapstructure:"script_timeout"`
	Spellcheck    bool          `mapstructure:"spellcheck"` // retry unmatched input with corrected keywords
}

// HookScript registers a JavaScript file as a turn hook.
type HookScript struct {
	Event    string `mapstructure:"event"` // turn.typed | turn.lines
	File     string `mapstructure:"file"`
	Priority int    `mapstructure:"priority"`
	When     string `mapstructure:"when"` // optional expr-lang condition
}

// OpcodeConfig is the YAML form of an opcode build. Values are 0-255.
type OpcodeConfig struct {
	AskTop int `mapstructure:"asktop"`
	Get    int `mapstructure:"get"`
	Key    int `mapstructure:"key"`
	Res    int `mapstructure:"res"`
	EndRes int `mapstructure:"endres"`
	End    int `mapstructure:"end"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

// Opcodes resolves the named build, or the active one when name is empty.
func (d DialogConfig) Opcodes(name string) (conversation.OpcodeMap, error) {
	if name == "" {
		name = d.Build
	}
	oc, ok := d.Builds[name]
	if !ok {
		return conversation.OpcodeMap{}, fmt.Errorf("%w: %q", ErrUnknownBuild, name)
	}
	return oc.toMap(name)
}

// OpcodeMaps resolves every configured build.
func (d DialogConfig) OpcodeMaps() (map[string]conversation.OpcodeMap, error) {
	out := make(map[string]conversation.OpcodeMap, len(d.Builds))
	for name, oc := range d.Builds {
		m, err := oc.toMap(name)
		if err != nil {
			return nil, err
		}
		out[name] = m
	}
	return out, nil
}

func (oc OpcodeConfig) toMap(name string) (conversation.OpcodeMap, error) {
	vals := []int{oc.AskTop, oc.Get, oc.Key, oc.Res, oc.EndRes, oc.End}
	for _, v := range vals {
		if v < 0 || v > 0xFF {
			return conversation.OpcodeMap{}, fmt.Errorf("config: build %q: opcode %d out of byte range", name, v)
		}
	}
	m := conversation.OpcodeMap{
		AskTop: byte(oc.AskTop),
		Get:    byte(oc.Get),
		Key:    byte(oc.Key),
		Res:    byte(oc.Res),
		EndRes: byte(oc.EndRes),
		End:    byte(oc.End),
	}
	if err := m.Validate(); err != nil {
		return conversation.OpcodeMap{}, fmt.Errorf("config: build %q: %w", name, err)
	}
	return m, nil
}

// Load reads config from the given YAML file path. An empty path uses the
// defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Dialog.Opcodes(""); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.debug", false)

	v.SetDefault("dialog.data_path", "./data/dialog")
	v.SetDefault("dialog.build", "u6")
	v.SetDefault("dialog.builds", map[string]interface{}{
		"u6": map[string]interface{}{
			"asktop": 0xF7,
			"get":    0xFB,
			"key":    0xEF,
			"res":    0xF6,
			"endres": 0xEE,
			"end":    0xB6,
		},
	})
	v.SetDefault("dialog.text_encoding", "cp437")
	v.SetDefault("dialog.mode", "cursor")
	v.SetDefault("dialog.filler_lines", []string{
		"\"Hmm,\" says $N, lost in thought.",
		"\"I cannot help thee with that, $G.\"",
		"$N shrugs.",
	})
	v.SetDefault("dialog.turns_per_second", 5)
	v.SetDefault("dialog.turn_burst", 10)
	v.SetDefault("dialog.rule_cache_ttl", "10m")
	v.SetDefault("dialog.script_pool", 2)
	v.SetDefault("dialog.script_timeout", "200ms")
	v.SetDefault("dialog.spellcheck", false)

	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/npctalk.db")
	v.SetDefault("database.mysql_max_open", 20)
	v.SetDefault("database.mysql_max_idle", 5)
	v.SetDefault("database.mysql_max_life", "1h")

	v.SetDefault("cache.local_gc_interval", "30s")
}
