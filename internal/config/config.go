package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-block-ledger/pkg/mysql"
)

// DefaultPath 預設設定檔位置
const DefaultPath = "config/config.yaml"

// Config 服務設定
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Settlement SettlementConfig `yaml:"settlement"`
	GRPC       ServerConfig     `yaml:"grpc"`
	HTTP       ServerConfig     `yaml:"http"`
	Genesis    GenesisConfig    `yaml:"genesis"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SettlementConfig struct {
	// Interval 每隔多久封存一個區塊
	Interval time.Duration `yaml:"interval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// GenesisConfig 啟動時要建立的帳戶
type GenesisConfig struct {
	Accounts []GenesisAccount `yaml:"accounts"`
	MySQL    GenesisMySQL     `yaml:"mysql"`
}

type GenesisAccount struct {
	ID      string `yaml:"id"`
	Balance uint64 `yaml:"balance"`
}

type GenesisMySQL struct {
	Enabled      bool `yaml:"enabled"`
	mysql.Config `yaml:",inline"`
}

// Default 回傳全部使用預設值的設定
func Default() Config {
	var cfg Config
	cfg.setDefaults()
	return cfg
}

// Load 讀取設定檔，檔案不存在且 optional 為 true 時回傳預設值
func Load(path string, optional bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 並補全預設值
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 檢查設定內容
func (c *Config) Validate() error {
	if c.Settlement.Interval < 0 {
		return fmt.Errorf("settlement.interval must not be negative, got %s", c.Settlement.Interval)
	}
	seen := make(map[string]struct{}, len(c.Genesis.Accounts))
	for i, acc := range c.Genesis.Accounts {
		if acc.ID == "" {
			return fmt.Errorf("genesis.accounts[%d]: id is required", i)
		}
		if _, ok := seen[acc.ID]; ok {
			return fmt.Errorf("genesis.accounts[%d]: duplicate id %q", i, acc.ID)
		}
		seen[acc.ID] = struct{}{}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Settlement.Interval == 0 {
		c.Settlement.Interval = 10 * time.Second
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8000"
	}
	if c.Genesis.MySQL.Enabled {
		c.Genesis.MySQL.SetDefaults()
	}
}
