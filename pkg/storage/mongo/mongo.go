package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blog/pkg/models"
	"blog/pkg/storage"
)

const postsCollection = "posts"

type Storage struct {
	client *mongo.Client
	dbName string
}

// New connects to Mongo and makes sure the posts collection and its indexes exist.
func New(ctx context.Context, conf *Config) (*Storage, error) {
	client, err := mongo.Connect(ctx, conf.Options())
	if err != nil {
		return nil, err
	}

	s := Storage{client: client, dbName: conf.DBName}
	if err := s.createCollection(ctx, postsCollection); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	if err := s.createIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	return &s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Storage) Close(ctx context.Context) {
	s.client.Disconnect(ctx)
}

func (s *Storage) posts() *mongo.Collection {
	return s.client.Database(s.dbName).Collection(postsCollection)
}

// CreatePost inserts a new post. A unique index on content turns duplicate
// content into storage.ErrDuplicateContent.
func (s *Storage) CreatePost(ctx context.Context, post models.Post) (models.Post, error) {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	post.Date = storedTime(post.Date)
	post.CreatedAt = storedTime(post.CreatedAt)
	post.UpdatedAt = storedTime(post.UpdatedAt)

	_, err := s.posts().InsertOne(ctx, post)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Post{}, fmt.Errorf("%w: %v", storage.ErrDuplicateContent, err)
		}
		return models.Post{}, err
	}

	return post, nil
}

// Posts returns the posts matching q, sorted and windowed as q requests.
func (s *Storage) Posts(ctx context.Context, q storage.Query) ([]models.Post, error) {
	opts := options.Find()
	switch q.Sort {
	case storage.SortAsc:
		opts.SetSort(bson.D{{Key: "date", Value: 1}})
	case storage.SortDesc:
		opts.SetSort(bson.D{{Key: "date", Value: -1}})
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.posts().Find(ctx, buildFilter(q), opts)
	if err != nil {
		return nil, err
	}

	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	for i := range posts {
		normalize(&posts[i])
	}

	return posts, nil
}

// CountPosts counts the posts matching q, ignoring its window.
func (s *Storage) CountPosts(ctx context.Context, q storage.Query) (int64, error) {
	return s.posts().CountDocuments(ctx, buildFilter(q))
}

// Post returns the post with the given id regardless of its status.
func (s *Storage) Post(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	var post models.Post
	err := s.posts().FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, storage.ErrPostNotFound
		}
		return models.Post{}, err
	}
	normalize(&post)

	return post, nil
}

func (s *Storage) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.posts().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrPostNotFound
	}

	return nil
}

// PrependComment pushes c to position 0 of the comments array in a single
// update, so concurrent appends to the same post never overwrite each other.
func (s *Storage) PrependComment(ctx context.Context, id primitive.ObjectID, c models.Comment, updatedAt time.Time) (models.Post, error) {
	update := bson.M{
		"$push": bson.M{
			"comments": bson.M{
				"$each":     []models.Comment{c},
				"$position": 0,
			},
		},
		"$set": bson.M{"updatedAt": updatedAt},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var post models.Post
	err := s.posts().FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, storage.ErrPostNotFound
		}
		return models.Post{}, err
	}
	normalize(&post)

	return post, nil
}

// buildFilter translates q into a Mongo filter document.
func buildFilter(q storage.Query) bson.M {
	filter := bson.M{}
	if q.VisibleOnly {
		filter["status"] = true
	}
	if q.Course != "" {
		filter["course"] = q.Course
	}
	if q.TitleContains != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.TitleContains), Options: "i"}
	}
	if !q.Date.IsZero() {
		date := bson.M{}
		if !q.Date.From.IsZero() {
			date["$gte"] = q.Date.From
		}
		if !q.Date.To.IsZero() {
			if q.Date.ExclusiveTo {
				date["$lt"] = q.Date.To
			} else {
				date["$lte"] = q.Date.To
			}
		}
		filter["date"] = date
	}

	return filter
}

// storedTime returns t as Mongo will hand it back: UTC, millisecond precision.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func normalize(p *models.Post) {
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
}

func (s *Storage) createIndexes(ctx context.Context) error {
	_, err := s.posts().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "content", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("content_unique"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index().SetName("status_date"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createCollection creates a collection with the given name in the database if it doesn't already exist.
func (s *Storage) createCollection(ctx context.Context, collName string) error {
	collExists, err := collectionExists(ctx, s.client.Database(s.dbName), collName)
	if err != nil {
		return err
	}

	if !collExists {
		err := s.client.Database(s.dbName).CreateCollection(ctx, collName)
		if err != nil {
			return err
		}
	}

	return nil
}

// collectionExists checks if a collection with the given name exists in the database.
func collectionExists(ctx context.Context, db *mongo.Database, collName string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return false, fmt.Errorf("failed to list collection names: %w", err)
	}

	for _, name := range names {
		if name == collName {
			return true, nil
		}
	}

	return false, nil
}
