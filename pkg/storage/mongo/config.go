package mongo

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrConfParamMissing = fmt.Errorf("configuration parameter missing")

type Config struct {
	Host   string
	Port   string
	DBName string
	User   string
	Pass   string
	// URI, when set, takes precedence over Host, Port, User and Pass.
	URI string

	ServerSelectionTimeout time.Duration
}

// NewConfig reads the connection settings from the environment.
// MONGO_URI alone is enough; otherwise MONGO_HOST and MONGO_PORT are required.
func NewConfig() (*Config, error) {
	conf := new(Config)
	conf.URI = os.Getenv("MONGO_URI")
	conf.DBName = os.Getenv("MONGO_DB_NAME")
	if conf.DBName == "" {
		return nil, fmt.Errorf("%w: MONGO_DB_NAME", ErrConfParamMissing)
	}
	if conf.URI != "" {
		return conf, nil
	}

	conf.Host = os.Getenv("MONGO_HOST")
	if conf.Host == "" {
		return nil, fmt.Errorf("%w: MONGO_HOST", ErrConfParamMissing)
	}
	conf.Port = os.Getenv("MONGO_PORT")
	if conf.Port == "" {
		return nil, fmt.Errorf("%w: MONGO_PORT", ErrConfParamMissing)
	}
	conf.User = os.Getenv("MONGO_USER")
	conf.Pass = os.Getenv("MONGO_PASS")

	return conf, nil
}

func (c *Config) conString() string {
	if c.URI != "" {
		return c.URI
	}
	if c.User != "" && c.Pass != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/", c.User, c.Pass, c.Host, c.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s/", c.Host, c.Port)
}

func (c *Config) Options() *options.ClientOptions {
	opts := options.Client().ApplyURI(c.conString())
	if c.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(c.ServerSelectionTimeout)
	}
	return opts
}

// String hides the password so the config can be logged.
func (c Config) String() string {
	c.Pass = strings.Repeat("*", len([]rune(c.Pass)))
	if c.URI != "" {
		c.URI = "<redacted>"
	}
	return fmt.Sprintf("%#v", c)
}
