package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"blog/pkg/models"
	"blog/pkg/storage"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const postColumns = `id, title, content, course, comments, date, status, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, conStr string) (*Store, error) {
	db, err := pgxpool.Connect(ctx, conStr)
	if err != nil {
		return nil, err
	}
	s := Store{
		db: db,
	}

	return &s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

// Migrate creates the posts table and its indexes if they don't exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

// CreatePost inserts a new post. The unique constraint on content turns
// duplicates into storage.ErrDuplicateContent.
func (s *Store) CreatePost(ctx context.Context, post models.Post) (models.Post, error) {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}

	comments, err := json.Marshal(post.Comments)
	if err != nil {
		return models.Post{}, err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)
	`,
		post.ID.Hex(),
		post.Title,
		post.Content,
		string(post.Course),
		string(comments),
		post.Date,
		post.Status,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Post{}, fmt.Errorf("%w: %s", storage.ErrDuplicateContent, pgErr.Message)
		}
		return models.Post{}, err
	}

	return post, nil
}

// Posts returns the posts matching q, sorted and windowed as q requests.
func (s *Store) Posts(ctx context.Context, q storage.Query) ([]models.Post, error) {
	where, args := buildWhere(q)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + postColumns + ` FROM posts`)
	sb.WriteString(where)
	switch q.Sort {
	case storage.SortAsc:
		sb.WriteString(` ORDER BY date ASC`)
	case storage.SortDesc:
		sb.WriteString(` ORDER BY date DESC`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	if q.Skip > 0 {
		args = append(args, q.Skip)
		fmt.Fprintf(&sb, ` OFFSET $%d`, len(args))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// CountPosts counts the posts matching q, ignoring its window.
func (s *Store) CountPosts(ctx context.Context, q storage.Query) (int64, error) {
	where, args := buildWhere(q)

	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(id) FROM posts`+where, args...).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// Post retrieves a post by its ID regardless of its status.
func (s *Store) Post(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	row := s.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id.Hex())
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, storage.ErrPostNotFound
		}
		return models.Post{}, err
	}

	return post, nil
}

func (s *Store) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id.Hex())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}

	return nil
}

// PrependComment puts c in front of the comments array within one UPDATE
// statement, so the row lock serializes concurrent appends.
func (s *Store) PrependComment(ctx context.Context, id primitive.ObjectID, c models.Comment, updatedAt time.Time) (models.Post, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return models.Post{}, err
	}

	row := s.db.QueryRow(ctx, `
		UPDATE posts
		SET comments = jsonb_build_array($2::jsonb) || comments,
			updated_at = $3
		WHERE id = $1
		RETURNING `+postColumns,
		id.Hex(),
		string(b),
		updatedAt,
	)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, storage.ErrPostNotFound
		}
		return models.Post{}, err
	}

	return post, nil
}

// buildWhere translates q into a WHERE clause with positional arguments.
// It returns an empty clause for an unconstrained query.
func buildWhere(q storage.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.VisibleOnly {
		conds = append(conds, "status = TRUE")
	}
	if q.Course != "" {
		conds = append(conds, "course = "+arg(string(q.Course)))
	}
	if q.TitleContains != "" {
		conds = append(conds, "title ILIKE "+arg("%"+escapeLike(q.TitleContains)+"%"))
	}
	if !q.Date.From.IsZero() {
		conds = append(conds, "date >= "+arg(q.Date.From))
	}
	if !q.Date.To.IsZero() {
		if q.Date.ExclusiveTo {
			conds = append(conds, "date < "+arg(q.Date.To))
		} else {
			conds = append(conds, "date <= "+arg(q.Date.To))
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanPost(row pgx.Row) (models.Post, error) {
	var (
		p        models.Post
		id       string
		course   string
		comments []byte
	)
	err := row.Scan(
		&id,
		&p.Title,
		&p.Content,
		&course,
		&comments,
		&p.Date,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return models.Post{}, err
	}

	p.ID, err = primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Post{}, fmt.Errorf("invalid post id %q in DB: %w", id, err)
	}
	p.Course = models.Course(course)
	p.Comments = []models.Comment{}
	if err := json.Unmarshal(comments, &p.Comments); err != nil {
		return models.Post{}, fmt.Errorf("failed to decode comments of post %s: %w", id, err)
	}

	p.Date = p.Date.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return p, nil
}
