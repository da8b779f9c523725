package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes yaml values like "100ms" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Relay     RelayConfig     `yaml:"relay"`
	Consumer  ConsumerConfig  `yaml:"consumer"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	Policy    PolicyConfig    `yaml:"policy"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	SubmittedTopic string   `yaml:"submitted_topic"`
	ScoredTopic    string   `yaml:"scored_topic"`
	DLQSuffix      string   `yaml:"dlq_suffix"`
	ScoringGroup   string   `yaml:"scoring_group"`
	DecisionGroup  string   `yaml:"decision_group"`
}

type RelayConfig struct {
	PollInterval     Duration `yaml:"poll_interval"`
	BatchSize        int      `yaml:"batch_size"`
	MaxRetries       int      `yaml:"max_retries"`
	PublishTimeout   Duration `yaml:"publish_timeout"`
	FailureThreshold int      `yaml:"failure_threshold"`
	SuccessThreshold int      `yaml:"success_threshold"`
	OpenCooldown     Duration `yaml:"open_cooldown"`
}

type ConsumerConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	BaseBackoff    Duration `yaml:"base_backoff"`
	HandlerTimeout Duration `yaml:"handler_timeout"`
}

type CryptoConfig struct {
	// Base64-encoded 32-byte AES key. Overridable via ENCRYPTION_KEY.
	Key string `yaml:"key"`
}

type PolicyConfig struct {
	// Window during which a PAN hash blocks resubmission. REJECTED
	// applications never block (their hash becomes reusable).
	DuplicatePANWindow Duration `yaml:"duplicate_pan_window"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override secrets from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		cfg.Crypto.Key = key
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Relay.PollInterval == 0 {
		c.Relay.PollInterval = Duration(100 * time.Millisecond)
	}
	if c.Relay.BatchSize == 0 {
		c.Relay.BatchSize = 10
	}
	if c.Relay.MaxRetries == 0 {
		c.Relay.MaxRetries = 10
	}
	if c.Relay.PublishTimeout == 0 {
		c.Relay.PublishTimeout = Duration(5 * time.Second)
	}
	if c.Relay.FailureThreshold == 0 {
		c.Relay.FailureThreshold = 5
	}
	if c.Relay.SuccessThreshold == 0 {
		c.Relay.SuccessThreshold = 2
	}
	if c.Relay.OpenCooldown == 0 {
		c.Relay.OpenCooldown = Duration(30 * time.Second)
	}
	if c.Consumer.MaxAttempts == 0 {
		c.Consumer.MaxAttempts = 3
	}
	if c.Consumer.BaseBackoff == 0 {
		c.Consumer.BaseBackoff = Duration(time.Second)
	}
	if c.Consumer.HandlerTimeout == 0 {
		c.Consumer.HandlerTimeout = Duration(30 * time.Second)
	}
	if c.Kafka.DLQSuffix == "" {
		c.Kafka.DLQSuffix = ".dlq"
	}
	if c.Policy.DuplicatePANWindow == 0 {
		c.Policy.DuplicatePANWindow = Duration(24 * time.Hour)
	}
}
