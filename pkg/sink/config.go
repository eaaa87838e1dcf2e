package sink

import (
	"errors"
	"fmt"
	"time"

	"github.com/84hero/ens-namer/internal/webhook"
)

// DefaultWebhookURL is the public metrics endpoint.
const DefaultWebhookURL = "https://app.enscribe.xyz/api/v1/metrics"

type OutputsConfig struct {
	Webhook  WebhookOutputConfig  `mapstructure:"webhook"`
	File     FileOutputConfig     `mapstructure:"file"`
	Console  ConsoleOutputConfig  `mapstructure:"console"`
	Postgres PostgresOutputConfig `mapstructure:"postgres"`
	Redis    RedisOutputConfig    `mapstructure:"redis"`
	Kafka    KafkaOutputConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQOutputConfig `mapstructure:"rabbitmq"`
}

type WebhookOutputConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	URL        string      `mapstructure:"url"`
	Secret     string      `mapstructure:"secret"`
	Retry      RetryConfig `mapstructure:"retry"`
	Async      bool        `mapstructure:"async"`
	BufferSize int         `mapstructure:"buffer_size"`
	Workers    int         `mapstructure:"workers"`
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type FileOutputConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ConsoleOutputConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PostgresOutputConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Table   string `mapstructure:"table"`
}

type RedisOutputConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	Mode     string `mapstructure:"mode"`
}

type KafkaOutputConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
}

type RabbitMQOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
	QueueName  string `mapstructure:"queue_name"`
	Durable    bool   `mapstructure:"durable"`
}

// BuildOutputs opens every enabled output. Outputs that fail to open are
// skipped and their errors joined into the returned error; the outputs that
// did open are still returned.
func BuildOutputs(cfg OutputsConfig) ([]Output, error) {
	var (
		outputs []Output
		errs    []error
	)
	add := func(name string, o Output, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s output: %w", name, err))
			return
		}
		outputs = append(outputs, o)
	}

	if wh := cfg.Webhook; wh.Enabled {
		url := wh.URL
		if url == "" {
			url = DefaultWebhookURL
		}
		outputs = append(outputs, NewWebhookOutput(webhook.Config{
			URL:            url,
			Secret:         wh.Secret,
			MaxAttempts:    wh.Retry.MaxAttempts,
			InitialBackoff: wh.Retry.InitialBackoff,
			MaxBackoff:     wh.Retry.MaxBackoff,
		}, wh.Async, wh.BufferSize, wh.Workers))
	}

	if cfg.File.Enabled {
		fo, err := NewFileOutput(cfg.File.Path)
		add("file", fo, err)
	}

	if cfg.Console.Enabled {
		outputs = append(outputs, NewConsoleOutput())
	}

	if pg := cfg.Postgres; pg.Enabled {
		table := pg.Table
		if table == "" {
			table = "namer_metrics"
		}
		po, err := NewPostgresOutput(pg.URL, table)
		add("postgres", po, err)
	}

	if r := cfg.Redis; r.Enabled {
		ro, err := NewRedisOutput(r.Addr, r.Password, r.DB, r.Key, r.Mode)
		add("redis", ro, err)
	}

	if k := cfg.Kafka; k.Enabled {
		ko, err := NewKafkaOutput(k.Brokers, k.Topic, k.User, k.Password)
		add("kafka", ko, err)
	}

	if mq := cfg.RabbitMQ; mq.Enabled {
		ro, err := NewRabbitMQOutput(mq.URL, mq.Exchange, mq.RoutingKey, mq.QueueName, mq.Durable)
		add("rabbitmq", ro, err)
	}

	return outputs, errors.Join(errs...)
}

// AnyEnabled reports whether at least one output is switched on.
func (c OutputsConfig) AnyEnabled() bool {
	return c.Webhook.Enabled || c.File.Enabled || c.Console.Enabled || c.Postgres.Enabled ||
		c.Redis.Enabled || c.Kafka.Enabled || c.RabbitMQ.Enabled
}
