package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"blog/pkg/storage"
)

var MongoTestConf = &Config{
	Host:   "localhost",
	Port:   "27018",
	DBName: "blog_test",

	ServerSelectionTimeout: 2 * time.Second,
}

// StorageConnect is a helper function that establishes a connection to the predefined test Mongo instance.
// It returns a connected Storage object or an error if connection fails.
func StorageConnect(ctx context.Context) (*Storage, error) {
	db, err := New(ctx, MongoTestConf)
	if err != nil {
		return nil, storage.ErrConnectDB
	}

	err = db.Ping(ctx)
	if err != nil {
		db.Close(ctx)
		return nil, storage.ErrDBNotResponding
	}

	return db, nil
}

// RestoreDB removes every post while keeping the collection and its indexes.
// WARNING: Use only in tests to avoid data loss.
func RestoreDB(ctx context.Context, db *Storage) error {
	_, err := db.posts().DeleteMany(ctx, bson.M{})
	return err
}
