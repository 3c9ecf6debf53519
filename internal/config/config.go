package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（可选，用于病房显示屏/移动端推送桥接）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 报警升级服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 升级调度配置
	Escalation struct {
		PollInterval int    // 轮询间隔（秒），默认 5秒
		BatchSize    int    // 每轮最多处理的报警数，默认 50
		PolicyFile   string // 升级策略文件路径（YAML）
		WatchPolicy  bool   // 是否监听策略文件变更（热加载）
	}

	// 通知分发配置
	Notify struct {
		Stream         string // Redis Stream 名称
		TopicPrefix    string // MQTT 主题前缀，如 "medguard/"
		WebhookURL     string // 外部 Webhook（为空则不启用）
		WebhookTimeout int    // Webhook 超时（秒）
	}

	// 活跃报警缓存配置
	Cache struct {
		ActiveKeyPrefix string // 如 "medguard:hospital:"
		ActiveSuffix    string // 如 ":active"
		ActiveTTL       int    // TTL（秒）
	}

	// WebSocket 推送配置
	WS struct {
		BroadcastInterval int // 快照广播间隔（秒）
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "medguard")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "medguard-alert")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Escalation.PollInterval = getEnvInt("ESCALATION_POLL_INTERVAL", 5)
	cfg.Escalation.BatchSize = getEnvInt("ESCALATION_BATCH_SIZE", 50)
	cfg.Escalation.PolicyFile = getEnv("ESCALATION_POLICY_FILE", "configs/escalation_policy.yaml")
	cfg.Escalation.WatchPolicy = getEnv("ESCALATION_WATCH_POLICY", "true") == "true"

	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "medguard:alerts:notify")
	cfg.Notify.TopicPrefix = getEnv("NOTIFY_TOPIC_PREFIX", "medguard/")
	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", "")
	cfg.Notify.WebhookTimeout = getEnvInt("NOTIFY_WEBHOOK_TIMEOUT", 10)

	cfg.Cache.ActiveKeyPrefix = getEnv("CACHE_ACTIVE_PREFIX", "medguard:hospital:")
	cfg.Cache.ActiveSuffix = ":active"
	cfg.Cache.ActiveTTL = getEnvInt("CACHE_ACTIVE_TTL", 60)

	cfg.WS.BroadcastInterval = getEnvInt("WS_BROADCAST_INTERVAL", 2)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
