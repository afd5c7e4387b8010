package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"blog/pkg/api"
	"blog/pkg/posts"
	"blog/pkg/storage"
	"blog/pkg/storage/memdb"
	"blog/pkg/storage/mongo"
	"blog/pkg/storage/postgres"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	f, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("[server] %v", err)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("[server] use ':' before port number, e.g. ':8080'")
	}

	if err := godotenv.Load(cfg.EnvFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warnf("[server] failed to load env file %s: %v", cfg.EnvFile, err)
		}
	} else {
		log.Debugf("[server] env loaded from %s", cfg.EnvFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	db, closeDB, err := openStorage(ctx, cfg.Storage)
	cancel()
	if err != nil {
		log.Fatalf("[server] %v", err)
	}

	var lw api.LogWriter
	if cfg.kafkaEnabled() {
		kw := &kafka.Writer{
			Addr:      kafka.TCP(cfg.KafkaAddr),
			Topic:     cfg.KafkaTopic,
			BatchSize: cfg.KafkaBatch,
			Balancer:  &kafka.Hash{},
		}
		defer kw.Close()

		if err := createTopic(kw.Addr.String(), kw.Topic); err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
		lw = kw
	} else {
		log.Warnf("[server] kafka was not configured, logs will not be sent to Kafka")
	}

	svc := posts.New(db)
	svc.StorageTimeout = cfg.StorageTimeout

	api := api.New(cfg.ServiceName, svc, lw, cfg.PathPrefix)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("[server] starting on %v with %s storage, routes under %q", cfg.HTTPAddr, cfg.Storage, cfg.PathPrefix)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}

	closeDB(shutdownCtx)
	log.Info("[server] disconnected from DB")
}

// openStorage connects the selected backend and checks it responds.
// The returned func releases it.
func openStorage(ctx context.Context, kind string) (storage.Storage, func(context.Context), error) {
	switch kind {
	case storageMemDB:
		log.Info("[server] run server with in memory DB")
		return memdb.New(), func(context.Context) {}, nil

	case storagePostgres:
		conf := postgres.NewConfig()
		if !conf.IsValid() {
			return nil, nil, fmt.Errorf("invalid postgres config: %s", conf)
		}
		db, err := postgres.New(ctx, conf.ConString())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrConnectDB, err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
		log.Infof("[server] connected to postgres: %s", conf)
		return db, func(context.Context) { db.Close() }, nil

	default:
		conf, err := mongo.NewConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("invalid mongo config: %w", err)
		}
		db, err := mongo.New(ctx, conf)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrConnectDB, err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close(ctx)
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		log.Infof("[server] connected to mongo: %s", conf)
		return db, db.Close, nil
	}
}

func createTopic(broker, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
