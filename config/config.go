package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	WasteTrack WasteTrackConfig `yaml:"wastetrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString собирает DSN для pgxpool; ssl_mode по умолчанию disable.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	AuditTopicName     string `yaml:"audit_topic_name"`
	PlanUsageTopicName string `yaml:"plan_usage_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type WasteTrackConfig struct {
	GRPCAddr                string `yaml:"grpc_addr"`
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	CurrentStatusTTLSeconds int    `yaml:"current_status_ttl_seconds"`
	UsageCacheTTLSeconds    int    `yaml:"usage_cache_ttl_seconds"`

	// "kafka" (по умолчанию) или "postgres".
	AuditSink string `yaml:"audit_sink"`

	RateLimitPerMinute  int      `yaml:"rate_limit_per_minute"`
	CORSAllowedOrigins  []string `yaml:"cors_allowed_origins"`
	SSEHeartbeatSeconds int      `yaml:"sse_heartbeat_seconds"`

	WorkerPollIntervalSeconds int    `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int    `yaml:"worker_batch_size"`
	WorkerConcurrency         int    `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int    `yaml:"worker_lease_seconds"`
	WorkerHTTPAddr            string `yaml:"worker_http_addr"`

	// Планирование пересчёта (необязательно). По умолчанию: спокойный тариф
	// раз в час, тариф у порога (>=80%) раз в 10 минут, backoff 1/5/15/60 минут.
	WorkerNextCheckIdleSeconds int `yaml:"worker_next_check_idle_seconds"`
	WorkerNextCheckBusySeconds int `yaml:"worker_next_check_busy_seconds"`
	WorkerBackoff1Seconds      int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds      int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds      int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds      int `yaml:"worker_backoff_4_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// applyEnv: секреты можно не держать в yaml, а передать через окружение / .env.
func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
}
