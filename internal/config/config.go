package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SettingTwitterUsername 是智能体在社交平台上的账号名配置键。
const SettingTwitterUsername = "TWITTER_USERNAME"

// DefaultPollInterval 是两次提及轮询之间的固定间隔。
const DefaultPollInterval = 120000 * time.Millisecond

// DefaultExplorerURL 是 Neo X 测试网浏览器的 API 地址。
const DefaultExplorerURL = "https://xt4scan.ngd.network:8877/api"

// Config 描述了守护进程在启动阶段需要加载的全部配置。
type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Twitter  TwitterConfig  `json:"twitter"`
	LLM      LLMConfig      `json:"llm"`
	Explorer ExplorerConfig `json:"explorer"`
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Events   EventsConfig   `json:"events"`
	Metrics  MetricsConfig  `json:"metrics"`
	Logging  LoggingConfig  `json:"logging"`
	Runtime  RuntimeConfig  `json:"runtime"`
}

// AgentConfig 描述智能体身份以及运行时可读取的设置项。
type AgentConfig struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Settings map[string]string `json:"settings"`
}

// TwitterConfig 控制社交平台客户端与轮询行为。
//
// AccessToken 必须是 OAuth 2.0 用户上下文令牌（授权码 + PKCE 流程获取，
// 需要 tweet.read、users.read、tweet.write 权限）。仅应用级的 Bearer Token
// 无法调用 /2/users/me 与 /2/tweets。
type TwitterConfig struct {
	BaseURL        string `json:"base_url"`
	AccessToken    string `json:"access_token"`
	AccessTokenEnv string `json:"access_token_env"`
	PollIntervalMs int    `json:"poll_interval_ms"`
	MaxResults     int    `json:"max_results"`
	ThreadDepth    int    `json:"thread_depth"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// PollInterval 返回轮询间隔。
func (t TwitterConfig) PollInterval() time.Duration {
	if t.PollIntervalMs <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

// Timeout 返回单次平台请求的超时时间。
func (t TwitterConfig) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// LLMConfig 用于配置文本生成服务。
type LLMConfig struct {
	Provider       string `json:"provider"`
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	MaxTokens      int    `json:"max_tokens"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回调用大模型的超时时间，0 表示不限制。
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// ExplorerConfig 描述区块浏览器的访问方式。
type ExplorerConfig struct {
	APIURL         string `json:"api_url"`
	NetworksFile   string `json:"networks_file"`
	DefaultNetwork string `json:"default_network"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回浏览器请求的超时时间。
func (e ExplorerConfig) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address    string   `json:"address"`
	Enabled    *bool    `json:"enabled,omitempty"`
	APIKeys    []string `json:"api_keys"`
	APIKeysEnv string   `json:"api_keys_env"`
}

// IsEnabled 返回是否启动 HTTP 服务，默认启动。
func (s ServerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// StorageConfig 统一描述已处理集合与会话记忆的存储后端。
type StorageConfig struct {
	Processed ProcessedStoreConfig `json:"processed"`
	Memory    MemoryStoreConfig    `json:"memory"`
}

// ProcessedStoreConfig 选择已处理提及集合的实现。
type ProcessedStoreConfig struct {
	Driver string      `json:"driver"`
	Redis  RedisConfig `json:"redis"`
}

// MemoryStoreConfig 选择会话记忆的持久化方式。
type MemoryStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// EventsConfig 描述交互事件的投递方式。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	URL     string `json:"url"`
	Queue   string `json:"queue"`
	Durable bool   `json:"durable"`
}

// MetricsConfig 控制独立的指标端口。为空时指标只通过 API 服务的 /metrics 暴露。
type MetricsConfig struct {
	Address string `json:"address"`
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件，并合并 .env 与环境变量中的敏感信息。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	baseDir := filepath.Dir(path)
	if err := loadDotEnv(baseDir); err != nil {
		return nil, err
	}
	cfg.applyDefaults(baseDir)
	cfg.applyEnv()

	return &cfg, nil
}

// loadDotEnv 读取配置目录下的 .env 文件，已存在的环境变量不会被覆盖。
func loadDotEnv(baseDir string) error {
	envPath := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(envPath); err != nil {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}
	return nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Agent.ID == "" {
		c.Agent.ID = "neox-agent"
	}
	if c.Agent.Settings == nil {
		c.Agent.Settings = map[string]string{}
	}

	if c.Twitter.BaseURL == "" {
		c.Twitter.BaseURL = "https://api.twitter.com"
	}
	if c.Twitter.AccessTokenEnv == "" {
		c.Twitter.AccessTokenEnv = "TWITTER_ACCESS_TOKEN"
	}
	if c.Twitter.PollIntervalMs <= 0 {
		c.Twitter.PollIntervalMs = int(DefaultPollInterval / time.Millisecond)
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Explorer.APIURL == "" {
		c.Explorer.APIURL = DefaultExplorerURL
	}
	c.Explorer.NetworksFile = resolvePath(baseDir, c.Explorer.NetworksFile)

	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.APIKeysEnv == "" {
		c.Server.APIKeysEnv = "NEOX_API_KEYS"
	}

	if c.Storage.Processed.Driver == "" {
		c.Storage.Processed.Driver = "memory"
	}
	if c.Storage.Memory.Driver == "" {
		c.Storage.Memory.Driver = "none"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolvePath(baseDir, c.Runtime.DataDir)
	}
	c.Logging.AuditPath = resolvePath(baseDir, c.Logging.AuditPath)
}

// applyEnv 使用环境变量补全敏感字段。
func (c *Config) applyEnv() {
	if strings.TrimSpace(c.Twitter.AccessToken) == "" {
		c.Twitter.AccessToken = strings.TrimSpace(os.Getenv(c.Twitter.AccessTokenEnv))
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
	}
	if len(c.Server.APIKeys) == 0 {
		for _, key := range strings.Split(os.Getenv(c.Server.APIKeysEnv), ",") {
			if key = strings.TrimSpace(key); key != "" {
				c.Server.APIKeys = append(c.Server.APIKeys, key)
			}
		}
	}
}

// GetSetting 按照智能体设置、环境变量的顺序查找配置项。
func (c *Config) GetSetting(key string) (string, bool) {
	if c != nil {
		if value, ok := c.Agent.Settings[key]; ok && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value, true
	}
	return "", false
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
