// Package posts implements the post operations on top of a storage backend:
// creation, paginated listing, filtering, lookup, deletion and comments.
package posts

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"blog/pkg/models"
	"blog/pkg/storage"
	"blog/pkg/validate"
)

const DefaultStorageTimeout = 5 * time.Second

type Service struct {
	db storage.Storage

	// StorageTimeout bounds every storage call. Zero or negative disables it.
	StorageTimeout time.Duration

	now func() time.Time
}

func New(db storage.Storage) *Service {
	return &Service{
		db:             db,
		StorageTimeout: DefaultStorageTimeout,
		now:            time.Now,
	}
}

// Page is one window of visible posts plus the number of visible posts overall.
type Page struct {
	Total int64
	Posts []models.Post
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.StorageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.StorageTimeout)
}

// Create stores a new visible post without comments dated now.
func (s *Service) Create(ctx context.Context, req validate.CreatePostRequest) (models.Post, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	post := models.NewPost(req.Title, req.Content, req.Course, s.now().UTC())
	post, err := s.db.CreatePost(ctx, post)
	if err != nil {
		return models.Post{}, err
	}
	log.Debugf("[posts] created post %s", post.ID.Hex())

	return post, nil
}

// List returns visible posts newest first, skipping req.From and returning at
// most req.Limit, together with the total number of visible posts.
func (s *Service) List(ctx context.Context, req validate.ListPostsRequest) (Page, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := storage.Query{
		VisibleOnly: true,
		Sort:        storage.SortDesc,
		Skip:        req.From,
		Limit:       req.Limit,
	}

	var page Page
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.db.CountPosts(gctx, q)
		if err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		page.Total = total
		return nil
	})
	g.Go(func() error {
		posts, err := s.db.Posts(gctx, q)
		if err != nil {
			return fmt.Errorf("fetch posts: %w", err)
		}
		page.Posts = posts
		return nil
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}

	return page, nil
}

// GetByID returns the post regardless of its visibility.
func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.db.Post(ctx, id)
}

// Filter returns every visible post matching the request, without pagination.
func (s *Service) Filter(ctx context.Context, req validate.FilterPostsRequest) ([]models.Post, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.db.Posts(ctx, FilterQuery(req))
}

// FilterQuery builds the storage query for a validated filter request.
//
// With both dates the range is inclusive on both ends. A start date alone
// selects the 24 hours beginning at it. An end date alone is an upper bound.
func FilterQuery(req validate.FilterPostsRequest) storage.Query {
	q := storage.Query{
		VisibleOnly:   true,
		Course:        req.Course,
		TitleContains: req.Title,
	}

	start, end := req.Dates()
	switch {
	case !start.IsZero() && !end.IsZero():
		q.Date = storage.DateRange{From: start, To: end}
	case !start.IsZero():
		q.Date = storage.DateRange{From: start, To: start.Add(24 * time.Hour), ExclusiveTo: true}
	case !end.IsZero():
		q.Date = storage.DateRange{To: end}
	}

	switch req.SortByDate {
	case "asc":
		q.Sort = storage.SortAsc
	case "desc":
		q.Sort = storage.SortDesc
	}

	return q
}

// Delete removes the post permanently.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.DeletePost(ctx, id); err != nil {
		return err
	}
	log.Debugf("[posts] deleted post %s", id.Hex())

	return nil
}

// AddComment puts a new comment dated now in front of the post's comments
// and returns the updated post.
func (s *Service) AddComment(ctx context.Context, id primitive.ObjectID, req validate.AddCommentRequest) (models.Post, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now().UTC()
	c := models.Comment{Username: req.Username, Text: req.Text, Date: now}

	return s.db.PrependComment(ctx, id, c, now)
}

// Ping checks that the storage backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.db.Ping(ctx)
}
