package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQueryThreshold 超過這個時間的查詢會以 warn 記錄
const slowQueryThreshold = 200 * time.Millisecond

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立並回傳一個新的 MySQL 客戶端實例 (GORM)
//
// 連線失敗時會依 cfg.MaxRetries / cfg.RetryInterval 重試，ctx 結束時立即放棄。
//
// 參數:
//
//	ctx: 控制重試等待
//	cfg: Config - MySQL 連線配置
//	log: 重試與 GORM 訊息使用的 logger
//
// 回傳值:
//
//	*Client: 封裝後的 MySQL 客戶端
//	error: 若連線失敗則回傳錯誤
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.SetDefaults()
	log = log.With().Str("component", "mysql").Str("host", cfg.Host).Str("db", cfg.DBName).Logger()

	gormConfig := &gorm.Config{
		// 只會讀取，不需要預設的 Transaction
		SkipDefaultTransaction: true,
		Logger:                 newLogger(cfg.LogLevel, log),
	}

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		db, err = open(ctx, cfg, gormConfig)
		if err == nil {
			break
		}
		if attempt == cfg.MaxRetries {
			break
		}

		log.Warn().Err(err).Int("attempt", attempt).Int("max", cfg.MaxRetries).
			Dur("retry_in", cfg.RetryInterval).Msg("failed to connect to mysql")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to mysql: %w", ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", cfg.MaxRetries, err)
	}

	log.Info().Msg("connected to mysql")
	return &Client{db: db}, nil
}

// open 嘗試連線一次並設定連線池
func open(ctx context.Context, cfg Config, gormConfig *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// DB 回傳底層的 *gorm.DB 實例
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter 把 GORM 的訊息轉給 zerolog
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Info().Msgf(format, args...)
}

// newLogger 根據配置建立 GORM Logger
func newLogger(level string, log zerolog.Logger) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error
	}

	return logger.New(gormWriter{log: log}, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})
}
