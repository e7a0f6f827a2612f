package mysql

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool holds connection pool limits. Zero values fall back to the defaults.
type Pool struct {
	MaxOpen int
	MaxIdle int
	MaxLife time.Duration
}

const (
	defaultMaxOpen = 20
	defaultMaxIdle = 5
	defaultMaxLife = time.Hour
)

// NormalizeDSN forces the DSN options the catalogue relies on: parsed
// DATETIME columns and utf8mb4 text.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	if !hasCharset(dsn) {
		if err := cfg.Apply(mysqldrv.Charset("utf8mb4", cfg.Collation)); err != nil {
			return "", fmt.Errorf("mysql: charset: %w", err)
		}
	}
	return cfg.FormatDSN(), nil
}

// hasCharset reports whether the DSN query sets charset. The parsed Config
// keeps the charset unexported, so the raw query is checked instead.
func hasCharset(dsn string) bool {
	tail := dsn[strings.LastIndexByte(dsn, '/')+1:]
	i := strings.IndexByte(tail, '?')
	if i < 0 {
		return false
	}
	q, err := url.ParseQuery(tail[i+1:])
	if err != nil {
		return false
	}
	_, ok := q["charset"]
	return ok
}

// Open creates a GORM *DB backed by MySQL with a connection pool.
func Open(dsn string, pool Pool) (*gorm.DB, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpen <= 0 {
		pool.MaxOpen = defaultMaxOpen
	}
	if pool.MaxIdle <= 0 {
		pool.MaxIdle = defaultMaxIdle
	}
	if pool.MaxLife <= 0 {
		pool.MaxLife = defaultMaxLife
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(pool.MaxLife)

	return db, nil
}
