package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Postgres PostgresConfig `mapstructure:"postgres"` // PostgreSQL配置
	OddsAPI  OddsAPIConfig  `mapstructure:"odds_api"` // TheOddsAPI配置
	Collect  CollectConfig  `mapstructure:"collect"`  // 采集调度配置
	Redis    RedisConfig    `mapstructure:"redis"`    // 读缓存配置
	Telegram TelegramConfig `mapstructure:"telegram"` // 盘口移动告警配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// OddsAPIConfig TheOddsAPI配置（采集的唯一外部数据源）
type OddsAPIConfig struct {
	BaseURL      string `mapstructure:"base_url"`      // API基础地址
	APIKey       string `mapstructure:"api_key"`       // API密钥（建议走.env）
	Regions      string `mapstructure:"regions"`       // 地区过滤，默认us
	Timeout      int    `mapstructure:"timeout"`       // 单次请求超时（秒）
	RetryCount   int    `mapstructure:"retry_count"`   // 失败重试次数
	MonthlyLimit int    `mapstructure:"monthly_limit"` // 月度请求配额（仅上报，不在本服务强制）
	Proxy        string `mapstructure:"proxy"`         // 代理地址
}

// CollectConfig 采集调度配置
type CollectConfig struct {
	// Sports 运动代码 → TheOddsAPI sport key
	Sports map[string]string `mapstructure:"sports"`
	// Markets 要采集的市场key列表（spreads/h2h/totals）
	Markets []string `mapstructure:"markets"`
	// Interval 后台自动采集间隔，0表示只接受手动触发
	Interval time.Duration `mapstructure:"interval"`
}

// RedisConfig 读缓存配置，addr为空时禁用缓存
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"` // 赔率视图缓存时长
}

// TelegramConfig 盘口移动告警配置，token为空时禁用
type TelegramConfig struct {
	BotToken string  `mapstructure:"bot_token"`
	ChatID   int64   `mapstructure:"chat_id"`
	MinMove  float64 `mapstructure:"min_move"` // 盘口线移动达到该幅度才告警
}

// DefaultMarkets 未配置markets时采集的市场
var DefaultMarkets = []string{"spreads", "h2h", "totals"}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)

	if len(cfg.Collect.Markets) == 0 {
		cfg.Collect.Markets = DefaultMarkets
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 60 * time.Second
	}
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		cfg.OddsAPI.APIKey = v
	}
	if v := os.Getenv("ODDS_API_PROXY"); v != "" {
		cfg.OddsAPI.Proxy = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}
