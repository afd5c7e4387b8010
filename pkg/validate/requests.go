package validate

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"blog/pkg/models"
)

const (
	DefaultLimit = 10
	DefaultFrom  = 0
)

type CreatePostRequest struct {
	Title   string        `json:"title" validate:"required,min=3"`
	Content string        `json:"content" validate:"required,min=10"`
	Course  models.Course `json:"course" validate:"required,course"`
}

// Validate trims the text fields and checks the request.
func (r *CreatePostRequest) Validate() FieldErrors {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	r.Course = models.Course(strings.TrimSpace(string(r.Course)))
	return check(r)
}

type AddCommentRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Text     string `json:"text" validate:"required,min=1"`
}

func (r *AddCommentRequest) Validate() FieldErrors {
	r.Username = strings.TrimSpace(r.Username)
	r.Text = strings.TrimSpace(r.Text)
	return check(r)
}

type PostIDRequest struct {
	PID string `json:"pid" validate:"required,objectid"`
}

func (r *PostIDRequest) Validate() FieldErrors {
	return check(r)
}

// ObjectID returns the parsed identifier. Only meaningful after Validate succeeded.
func (r PostIDRequest) ObjectID() primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(r.PID)
	return id
}

// FilterPostsRequest holds the filter query parameters. Query values are
// always strings, so title needs no type check.
type FilterPostsRequest struct {
	Course     models.Course `json:"course" validate:"omitempty,course"`
	Title      string        `json:"title"`
	SortByDate string        `json:"sortByDate" validate:"omitempty,oneof=asc desc"`
	StartDate  string        `json:"startDate" validate:"omitempty,date"`
	EndDate    string        `json:"endDate" validate:"omitempty,date"`
}

func NewFilterPostsRequest(q url.Values) FilterPostsRequest {
	return FilterPostsRequest{
		Course:     models.Course(q.Get("course")),
		Title:      q.Get("title"),
		SortByDate: q.Get("sortByDate"),
		StartDate:  q.Get("startDate"),
		EndDate:    q.Get("endDate"),
	}
}

func (r *FilterPostsRequest) Validate() FieldErrors {
	return check(r)
}

// Dates returns the parsed date bounds; an absent or unparsable bound is zero.
func (r FilterPostsRequest) Dates() (start, end time.Time) {
	if r.StartDate != "" {
		start, _ = ParseDate(r.StartDate)
	}
	if r.EndDate != "" {
		end, _ = ParseDate(r.EndDate)
	}
	return start, end
}

// ListPostsRequest is the pagination window of the post listing.
type ListPostsRequest struct {
	Limit int
	From  int
}

// NewListPostsRequest coerces the limit and from query values. Anything that
// is not a usable integer falls back to the default instead of failing.
func NewListPostsRequest(q url.Values) ListPostsRequest {
	req := ListPostsRequest{Limit: DefaultLimit, From: DefaultFrom}

	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil && n > 0 {
		req.Limit = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("from"))); err == nil && n >= 0 {
		req.From = n
	}

	return req
}
