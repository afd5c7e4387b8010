package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"blog/pkg/api"
	"blog/pkg/posts"
)

const (
	storageMongo    = "mongo"
	storagePostgres = "postgres"
	storageMemDB    = "memdb"
)

type Config struct {
	ServiceName    string        `toml:"serviceName"`
	HTTPAddr       string        `toml:"httpAddr"`
	PathPrefix     string        `toml:"pathPrefix"`
	LogLevel       string        `toml:"logLevel"`
	EnvFile        string        `toml:"envFile"`
	Storage        string        `toml:"storage"`
	StorageTimeout time.Duration `toml:"storageTimeout"`
	KafkaAddr      string        `toml:"kafkaAddr"`
	KafkaTopic     string        `toml:"kafkaTopic"`
	KafkaBatch     int           `toml:"kafkaBatch"`
}

// flags holds command line overrides. Empty values keep the file setting.
type flags struct {
	configPath string
	httpAddr   string
	logLevel   string
	storage    string
	kafkaAddr  string
	kafkaTopic string
	kafkaBatch int
	dev        bool
}

func parseFlags(fs *flag.FlagSet, args []string) (flags, error) {
	var f flags
	fs.StringVar(&f.configPath, "config", "cmd/server/config.toml", "Path to TOML config file")
	fs.StringVar(&f.httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	fs.StringVar(&f.logLevel, "log", "", "Log level: debug, info, warn, error.")
	fs.StringVar(&f.storage, "storage", "", "Storage backend: mongo, postgres, memdb.")
	fs.StringVar(&f.kafkaAddr, "kafka", "", "Kafka server address in the form 'host:port'.")
	fs.StringVar(&f.kafkaTopic, "topic", "", "Kafka topic.")
	fs.IntVar(&f.kafkaBatch, "batch", 0, "Kafka batch size.")
	fs.BoolVar(&f.dev, "dev", false, "Run the server in development mode with in-memory DB.")

	err := fs.Parse(args)
	return f, err
}

func defaultConfig() Config {
	return Config{
		ServiceName:    "blog",
		HTTPAddr:       ":8088",
		PathPrefix:     api.DefaultPrefix,
		LogLevel:       "info",
		EnvFile:        ".env",
		Storage:        storageMongo,
		StorageTimeout: posts.DefaultStorageTimeout,
	}
}

// loadConfig reads the TOML file over the defaults and applies flag overrides.
func loadConfig(f flags) (Config, error) {
	cfg := defaultConfig()
	if f.configPath != "" {
		if _, err := toml.DecodeFile(f.configPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", f.configPath, err)
		}
	}

	if f.httpAddr != "" {
		cfg.HTTPAddr = f.httpAddr
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.storage != "" {
		cfg.Storage = f.storage
	}
	if f.dev {
		cfg.Storage = storageMemDB
	}
	if f.kafkaAddr != "" {
		cfg.KafkaAddr = f.kafkaAddr
	}
	if f.kafkaTopic != "" {
		cfg.KafkaTopic = f.kafkaTopic
	}
	if f.kafkaBatch != 0 {
		cfg.KafkaBatch = f.kafkaBatch
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Storage {
	case storageMongo, storagePostgres, storageMemDB:
	default:
		return fmt.Errorf("unknown storage %q, want one of: %s, %s, %s", c.Storage, storageMongo, storagePostgres, storageMemDB)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.KafkaBatch < 0 {
		return fmt.Errorf("negative kafka batch size %d", c.KafkaBatch)
	}
	if c.PathPrefix != "" && !strings.HasPrefix(c.PathPrefix, "/") {
		return fmt.Errorf("path prefix %q must start with '/'", c.PathPrefix)
	}
	return nil
}

func (c Config) kafkaEnabled() bool {
	return c.KafkaAddr != "" && c.KafkaTopic != ""
}
