package memdb

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"blog/pkg/models"
	"blog/pkg/storage"
)

// Store keeps posts in memory in insertion order, which serves as the
// natural order for unsorted queries.
type Store struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]models.Post
	order []primitive.ObjectID
}

func New() *Store {
	db := Store{
		posts: make(map[primitive.ObjectID]models.Post),
	}

	return &db
}

func (db *Store) Ping(ctx context.Context) error {
	return nil
}

func (db *Store) CreatePost(ctx context.Context, post models.Post) (models.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	for _, p := range db.posts {
		if p.Content == post.Content {
			return models.Post{}, storage.ErrDuplicateContent
		}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}

	db.posts[post.ID] = clone(post)
	db.order = append(db.order, post.ID)

	return clone(post), nil
}

// AddPosts inserts posts as is, skipping the uniqueness check. Test helper.
func (db *Store) AddPosts(posts ...models.Post) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, post := range posts {
		if post.ID.IsZero() {
			post.ID = primitive.NewObjectID()
		}
		if _, ok := db.posts[post.ID]; !ok {
			db.order = append(db.order, post.ID)
		}
		db.posts[post.ID] = clone(post)
	}
}

func (db *Store) Posts(ctx context.Context, q storage.Query) ([]models.Post, error) {
	db.mu.Lock()
	matched := db.match(q)
	db.mu.Unlock()

	switch q.Sort {
	case storage.SortAsc:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Date.Before(matched[j].Date)
		})
	case storage.SortDesc:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Date.After(matched[j].Date)
		})
	}

	start := q.Skip
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []models.Post{}, nil
	}
	end := len(matched)
	if q.Limit > 0 && q.Limit < end-start {
		end = start + q.Limit
	}

	return matched[start:end], nil
}

func (db *Store) CountPosts(ctx context.Context, q storage.Query) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.match(q))), nil
}

func (db *Store) Post(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	post, ok := db.posts[id]
	if !ok {
		return models.Post{}, storage.ErrPostNotFound
	}

	return clone(post), nil
}

func (db *Store) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.posts[id]; !ok {
		return storage.ErrPostNotFound
	}
	delete(db.posts, id)
	for i, v := range db.order {
		if v == id {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}

	return nil
}

func (db *Store) PrependComment(ctx context.Context, id primitive.ObjectID, c models.Comment, updatedAt time.Time) (models.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	post, ok := db.posts[id]
	if !ok {
		return models.Post{}, storage.ErrPostNotFound
	}

	comments := make([]models.Comment, 0, len(post.Comments)+1)
	comments = append(comments, c)
	comments = append(comments, post.Comments...)
	post.Comments = comments
	post.UpdatedAt = updatedAt
	db.posts[id] = post

	return clone(post), nil
}

// match returns copies of the posts satisfying q in insertion order.
// Caller must hold db.mu.
func (db *Store) match(q storage.Query) []models.Post {
	title := strings.ToLower(q.TitleContains)

	out := make([]models.Post, 0, len(db.order))
	for _, id := range db.order {
		p := db.posts[id]
		if q.VisibleOnly && !p.Status {
			continue
		}
		if q.Course != "" && p.Course != q.Course {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(p.Title), title) {
			continue
		}
		if !q.Date.Contains(p.Date) {
			continue
		}
		out = append(out, clone(p))
	}

	return out
}

func clone(p models.Post) models.Post {
	comments := make([]models.Comment, len(p.Comments))
	copy(comments, p.Comments)
	p.Comments = comments
	return p
}

// LoadTestPosts reads posts from a JSON file. Used to seed test databases.
func LoadTestPosts(path string) ([]models.Post, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	if err := json.Unmarshal(b, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}
