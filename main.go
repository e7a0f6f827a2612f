package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kasuganosora/npctalk/server/audit"
	"github.com/kasuganosora/npctalk/server/cache"
	"github.com/kasuganosora/npctalk/server/config"
	dbadapter "github.com/kasuganosora/npctalk/server/db"
	"github.com/kasuganosora/npctalk/server/game/conversation"
	"github.com/kasuganosora/npctalk/server/game/npc"
	"github.com/kasuganosora/npctalk/server/game/script"
	"github.com/kasuganosora/npctalk/server/model"
	"github.com/kasuganosora/npctalk/server/plugin/hook"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var cfgPath string

// openDB is swapped in tests to observe the connection lifecycle.
var openDB = dbadapter.Open

var rootCmd = &cobra.Command{
	Use:           "npctalk",
	Short:         "Keyword-driven NPC conversation engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file (defaults only when empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "npctalk:", err)
		os.Exit(1)
	}
}

// app holds the shared services of one command invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	cache  cache.Cache
	audit  *audit.Service
	rules  *npc.RuleCache
}

func openApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	if cfg.Server.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	// ---- Database ----
	db, err := openDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	logger.Debug("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("cache: %w", err)
	}
	logger.Debug("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		cache:  c,
		audit:  audit.New(db, logger),
		rules:  npc.NewRuleCache(c, cfg.Dialog.RuleCacheTTL, logger),
	}, nil
}

func (a *app) Close() {
	a.audit.Stop(context.Background())
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close", zap.Error(err))
	}
	closeDB(a.db)
	_ = a.logger.Sync()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// executor builds the conversation controller from the dialog config.
func (a *app) executor(hooks *hook.Center) (*npc.Executor, error) {
	builds, err := a.cfg.Dialog.OpcodeMaps()
	if err != nil {
		return nil, err
	}
	charset, err := conversation.LookupCharset(a.cfg.Dialog.TextEncoding)
	if err != nil {
		return nil, err
	}
	return npc.NewWithDB(a.db, npc.Options{
		DefaultBuild:   a.cfg.Dialog.Build,
		Builds:         builds,
		Charset:        charset,
		Fillers:        a.cfg.Dialog.FillerLines,
		TurnsPerSecond: a.cfg.Dialog.TurnsPerSecond,
		TurnBurst:      a.cfg.Dialog.TurnBurst,
		Spellcheck:     a.cfg.Dialog.Spellcheck,
		Rules:          a.rules,
		Audit:          a.audit,
		Hooks:          hooks,
	}, a.logger)
}

// registerScriptHooks loads the configured JavaScript hooks into hooks.
// Relative paths are resolved against the dialog data path.
func (a *app) registerScriptHooks(hooks *hook.Center) error {
	if len(a.cfg.Dialog.Hooks) == 0 {
		return nil
	}
	sb := script.NewSandbox(a.cfg.Dialog.ScriptPool, a.cfg.Dialog.ScriptTimeout, a.logger)
	for _, h := range a.cfg.Dialog.Hooks {
		if h.Event != hook.TurnTyped && h.Event != hook.TurnLines {
			return fmt.Errorf("hook %s: unknown event %q", h.File, h.Event)
		}
		path := h.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.cfg.Dialog.DataPath, path)
		}
		fn, err := sb.HookFile(path)
		if err != nil {
			return err
		}
		if fn, err = script.Guard(h.When, fn); err != nil {
			return err
		}
		hooks.Register(h.Event, h.Priority, h.File, fn)
		a.logger.Debug("script hook registered", zap.String("event", h.Event), zap.String("file", path))
	}
	return nil
}
