package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "postgres", cfg.Database.Password)
	assert.Equal(t, "medguard", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	assert.Equal(t, 5, cfg.Escalation.PollInterval)
	assert.Equal(t, 50, cfg.Escalation.BatchSize)
	assert.Equal(t, "configs/escalation_policy.yaml", cfg.Escalation.PolicyFile)
	assert.True(t, cfg.Escalation.WatchPolicy)

	assert.Equal(t, "medguard:alerts:notify", cfg.Notify.Stream)
	assert.Equal(t, "medguard/", cfg.Notify.TopicPrefix)
	assert.Equal(t, "", cfg.Notify.WebhookURL)

	assert.Equal(t, "medguard:hospital:", cfg.Cache.ActiveKeyPrefix)
	assert.Equal(t, ":active", cfg.Cache.ActiveSuffix)
	assert.Equal(t, 60, cfg.Cache.ActiveTTL)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "5433")
	os.Setenv("DB_USER", "test-user")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("MQTT_ENABLED", "true")
	os.Setenv("ESCALATION_POLL_INTERVAL", "10")
	os.Setenv("NOTIFY_WEBHOOK_URL", "https://hooks.example.com/alerts")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "test-user", cfg.Database.User)
	assert.Equal(t, "test-db", cfg.Database.Database)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, 10, cfg.Escalation.PollInterval)
	assert.Equal(t, "https://hooks.example.com/alerts", cfg.Notify.WebhookURL)
	assert.Equal(t, "debug", cfg.Log.Level)

	os.Clearenv()
}

func TestGetEnvInt_InvalidValue(t *testing.T) {
	os.Setenv("TEST_INT_KEY", "not-a-number")
	defer os.Clearenv()

	value := getEnvInt("TEST_INT_KEY", 42)
	assert.Equal(t, 42, value)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.local",
		Port:     5432,
		User:     "medguard",
		Password: "secret",
		Database: "medguard",
		SSLMode:  "require",
	}

	dsn := cfg.GetDSN()
	assert.Equal(t, "host=db.local port=5432 user=medguard password=secret dbname=medguard sslmode=require", dsn)
}
