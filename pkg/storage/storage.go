// Package storage defines the contract between the post service and the
// document store backing it.
package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"blog/pkg/models"
)

var (
	ErrConnectDB       = errors.New("unable to establish DB connection")
	ErrDBNotResponding = errors.New("DB not responding")

	ErrPostNotFound     = errors.New("post not found")
	ErrDuplicateContent = errors.New("post with the same content already exists")
)

type SortOrder int

const (
	SortNone SortOrder = iota
	SortAsc
	SortDesc
)

// DateRange bounds the post date. Zero From or To means no bound on that side.
// To is inclusive unless ExclusiveTo is set.
type DateRange struct {
	From        time.Time
	To          time.Time
	ExclusiveTo bool
}

func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls into the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() {
		if r.ExclusiveTo && !t.Before(r.To) {
			return false
		}
		if !r.ExclusiveTo && t.After(r.To) {
			return false
		}
	}
	return true
}

// Query is a conjunction of post constraints plus ordering and window.
// Skip and Limit are ignored by CountPosts; Limit <= 0 means no limit.
type Query struct {
	VisibleOnly bool
	Course      models.Course
	// TitleContains is matched as a case-insensitive literal substring.
	TitleContains string
	Date          DateRange
	Sort          SortOrder
	Skip          int
	Limit         int
}

// Storage is implemented by every post backend.
type Storage interface {
	CreatePost(ctx context.Context, post models.Post) (models.Post, error)
	Posts(ctx context.Context, q Query) ([]models.Post, error)
	CountPosts(ctx context.Context, q Query) (int64, error)
	Post(ctx context.Context, id primitive.ObjectID) (models.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	// PrependComment atomically puts c at the front of the post's comments
	// and returns the updated post.
	PrependComment(ctx context.Context, id primitive.ObjectID, c models.Comment, updatedAt time.Time) (models.Post, error)
	Ping(ctx context.Context) error
}
