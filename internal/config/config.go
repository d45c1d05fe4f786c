package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 后端环境
const (
	EnvironmentProduction = "production"
	EnvironmentDebug      = "debug"
)

// APIConfig 定义别名服务后端的访问配置
type APIConfig struct {
	Environment   string        // 使用哪套后端: production 或 debug
	ProductionURL string        // 生产环境基础地址
	DebugURL      string        // 调试/预发环境基础地址
	Timeout       time.Duration // 单次请求超时时间
	RateLimit     float64       // 客户端每秒最多发起的请求数，0 表示不限制
	DeviceName    string        // 登录时上报的设备名
}

// BaseURL 返回当前环境对应的基础地址
func (c APIConfig) BaseURL() string {
	if c.Environment == EnvironmentDebug {
		return c.DebugURL
	}
	return c.ProductionURL
}

// AliasConfig 定义别名列表相关配置
type AliasConfig struct {
	PageSize int // 每页条数，同时决定本地分页读取大小
}

// StorageConfig 定义本地缓存存储配置
type StorageConfig struct {
	Driver          string        // 存储类型: sqlite、postgres、mysql 或 memory
	DSN             string        // 连接字符串；sqlite 时为数据库文件路径
	MaxOpenConns    int           // 最大打开连接数，默认 10
	MaxIdleConns    int           // 最大空闲连接数，默认 2
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// CredentialConfig 定义 API Key 的保存位置
type CredentialConfig struct {
	Driver    string // memory 或 redis
	KeyPrefix string // redis 键前缀
	Secret    string // 非空时 API Key 加密后再保存
	APIKey    string // memory 驱动的初始 API Key，用于在命令之间复用登录状态
}

// RedisConfig 定义 Redis 服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// BridgeConfig 定义本地 UI 桥接服务的监听配置
type BridgeConfig struct {
	Host           string   // 监听地址，默认 "127.0.0.1"
	Port           int      // 监听端口，默认 8787
	AllowedOrigins []string      // 允许的来源列表
	SessionSecret  string        // 会话令牌签名密钥，留空时每次启动随机生成
	SessionTTL     time.Duration // 会话令牌有效期，默认 12 小时
}

// Config 是客户端配置的根结构体
type Config struct {
	API        APIConfig
	Alias      AliasConfig
	Storage    StorageConfig
	Credential CredentialConfig
	Redis      RedisConfig
	Log        LogConfig
	Bridge     BridgeConfig
}

// Load 从环境变量和 .env 文件加载配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: ALIASKIT_
// 例如: ALIASKIT_API_ENVIRONMENT, ALIASKIT_STORAGE_DRIVER
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("aliaskit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.environment", EnvironmentProduction)
	v.SetDefault("api.production_url", "https://app.simplelogin.io")
	v.SetDefault("api.debug_url", "http://localhost:7777")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.device_name", "aliaskit")
	v.SetDefault("alias.page_size", 20)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "./data/aliaskit.db")
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.max_idle_conns", 2)
	v.SetDefault("storage.conn_max_lifetime", "5m")
	v.SetDefault("credential.driver", "memory")
	v.SetDefault("credential.key_prefix", "aliaskit")
	v.SetDefault("credential.secret", "")
	v.SetDefault("credential.api_key", "")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("bridge.host", "127.0.0.1")
	v.SetDefault("bridge.port", 8787)
	v.SetDefault("bridge.allowed_origins", "http://localhost")
	v.SetDefault("bridge.session_secret", "")
	v.SetDefault("bridge.session_ttl", "12h")

	environment := strings.ToLower(strings.TrimSpace(v.GetString("api.environment")))
	if environment != EnvironmentProduction && environment != EnvironmentDebug {
		return nil, fmt.Errorf("invalid api.environment %q (supported: production, debug)", environment)
	}

	timeout, err := time.ParseDuration(v.GetString("api.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid api.timeout: %w", err)
	}

	rateLimit := v.GetFloat64("api.rate_limit")
	if rateLimit < 0 {
		rateLimit = 0
	}

	pageSize := v.GetInt("alias.page_size")
	if pageSize <= 0 {
		return nil, fmt.Errorf("alias.page_size must be positive")
	}

	driver := strings.ToLower(v.GetString("storage.driver"))
	switch driver {
	case "sqlite", "postgres", "mysql", "memory":
	default:
		return nil, fmt.Errorf("unsupported storage.driver %q (supported: sqlite, postgres, mysql, memory)", driver)
	}

	credentialDriver := strings.ToLower(v.GetString("credential.driver"))
	if credentialDriver != "memory" && credentialDriver != "redis" {
		return nil, fmt.Errorf("unsupported credential.driver %q (supported: memory, redis)", credentialDriver)
	}

	connMaxLifetime, err := time.ParseDuration(v.GetString("storage.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	sessionTTL, err := time.ParseDuration(v.GetString("bridge.session_ttl"))
	if err != nil || sessionTTL <= 0 {
		return nil, fmt.Errorf("invalid bridge.session_ttl %q", v.GetString("bridge.session_ttl"))
	}

	origins := parseList(v.GetString("bridge.allowed_origins"))
	if len(origins) == 0 {
		origins = []string{"http://localhost"}
	}

	cfg := &Config{
		API: APIConfig{
			Environment:   environment,
			ProductionURL: strings.TrimRight(v.GetString("api.production_url"), "/"),
			DebugURL:      strings.TrimRight(v.GetString("api.debug_url"), "/"),
			Timeout:       timeout,
			RateLimit:     rateLimit,
			DeviceName:    v.GetString("api.device_name"),
		},
		Alias: AliasConfig{
			PageSize: pageSize,
		},
		Storage: StorageConfig{
			Driver:          driver,
			DSN:             v.GetString("storage.dsn"),
			MaxOpenConns:    v.GetInt("storage.max_open_conns"),
			MaxIdleConns:    v.GetInt("storage.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Credential: CredentialConfig{
			Driver:    credentialDriver,
			KeyPrefix: v.GetString("credential.key_prefix"),
			Secret:    v.GetString("credential.secret"),
			APIKey:    strings.TrimSpace(v.GetString("credential.api_key")),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Bridge: BridgeConfig{
			Host:           v.GetString("bridge.host"),
			Port:           v.GetInt("bridge.port"),
			AllowedOrigins: origins,
			SessionSecret:  v.GetString("bridge.session_secret"),
			SessionTTL:     sessionTTL,
		},
	}

	// 基础地址格式错误属于配置错误，在启动时就暴露
	if _, err := url.ParseRequestURI(cfg.API.BaseURL()); err != nil {
		return nil, fmt.Errorf("invalid base URL for %s environment: %w", environment, err)
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
