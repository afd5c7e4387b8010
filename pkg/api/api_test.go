package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"blog/pkg/models"
	"blog/pkg/posts"
	"blog/pkg/storage"
	"blog/pkg/storage/memdb"
	"blog/pkg/validate"
)

const testPostsPath = "../../test_data/post_examples.json"

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func seededAPI(t *testing.T) (*API, []models.Post) {
	t.Helper()

	testPosts, err := memdb.LoadTestPosts(testPostsPath)
	if err != nil {
		t.Fatalf("unexpected error while loading test posts: %v", err)
	}

	db := memdb.New()
	db.AddPosts(testPosts...)

	return New("blog", posts.New(db), nil, DefaultPrefix), testPosts
}

func serve(api *API, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	api.Router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("unexpected error while unmarshaling response %q: %v", rr.Body.String(), err)
	}
}

func TestAPI_createPostHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		statusWant int
		errorsWant []string
	}{
		{
			name:       "valid",
			body:       `{"title":"Testing in Go","content":"Table driven tests keep cases readable","course":"Technology"}`,
			statusWant: http.StatusCreated,
		},
		{
			name:       "missing fields",
			body:       `{}`,
			statusWant: http.StatusBadRequest,
			errorsWant: []string{"content", "course", "title"},
		},
		{
			name:       "empty body",
			body:       "",
			statusWant: http.StatusBadRequest,
			errorsWant: []string{"content", "course", "title"},
		},
		{
			name:       "unknown course",
			body:       `{"title":"Testing in Go","content":"Table driven tests keep cases readable","course":"Cooking"}`,
			statusWant: http.StatusBadRequest,
			errorsWant: []string{"course"},
		},
		{
			name:       "malformed json",
			body:       `{"title":`,
			statusWant: http.StatusBadRequest,
		},
		{
			name:       "duplicate content",
			body:       `{"title":"Again","content":"Go is a compiled language designed at Google","course":"Workshop"}`,
			statusWant: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _ := seededAPI(t)

			rr := serve(api, http.MethodPost, "/blog/v1/post/", tt.body)
			if rr.Code != tt.statusWant {
				t.Fatalf("want status code %v, got %v: %s", tt.statusWant, rr.Code, rr.Body.String())
			}

			if tt.errorsWant != nil {
				var resp ValidationErrorResponse
				decode(t, rr, &resp)
				if resp.Success || resp.Msg != "Validation failed" {
					t.Errorf("want failed validation envelope, got %+v", resp)
				}
				got := make([]string, 0, len(resp.Errors))
				for _, f := range tt.errorsWant {
					if _, ok := resp.Errors[f]; ok {
						got = append(got, f)
					}
				}
				if len(got) != len(tt.errorsWant) || len(resp.Errors) != len(tt.errorsWant) {
					t.Errorf("want errors for %v, got %v", tt.errorsWant, resp.Errors)
				}
			}
		})
	}
}

func TestAPI_createPostHandlerResponse(t *testing.T) {
	api, _ := seededAPI(t)

	body := `{"title":"  Testing in Go  ","content":"Table driven tests keep cases readable","course":"Supervised Practice"}`
	rr := serve(api, http.MethodPost, "/blog/v1/post", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("want status code %v, got %v", http.StatusCreated, rr.Code)
	}
	if strings.Contains(rr.Body.String(), `"_id"`) {
		t.Errorf("response must not expose _id: %s", rr.Body.String())
	}

	var resp PostResponse
	decode(t, rr, &resp)
	if !resp.Success || resp.Msg != "Post created successfully" {
		t.Errorf("want success envelope, got %+v", resp)
	}
	if resp.Post.ID.IsZero() {
		t.Error("want generated post id")
	}
	if resp.Post.Title != "Testing in Go" {
		t.Errorf("want trimmed title %q, got %q", "Testing in Go", resp.Post.Title)
	}
	if !resp.Post.Status || len(resp.Post.Comments) != 0 {
		t.Errorf("want visible post without comments, got %+v", resp.Post)
	}

	var dup ErrorResponse
	rr = serve(api, http.MethodPost, "/blog/v1/post", body)
	decode(t, rr, &dup)
	if dup.Msg != "Error creating post" || dup.Error == "" {
		t.Errorf("want creation error with reason, got %+v", dup)
	}
}

func TestAPI_listPostsHandler(t *testing.T) {
	api, testPosts := seededAPI(t)

	visible := 0
	for _, p := range testPosts {
		if p.Status {
			visible++
		}
	}

	tests := []struct {
		name     string
		path     string
		wantLen  int
		wantHead string
	}{
		{name: "defaults", path: "/blog/v1/post/", wantLen: visible, wantHead: "Soldering Workshop Recap"},
		{name: "no trailing slash", path: "/blog/v1/post", wantLen: visible, wantHead: "Soldering Workshop Recap"},
		{name: "window", path: "/blog/v1/post/?limit=2&from=1", wantLen: 2, wantHead: "Concurrency Patterns in Go"},
		{name: "max int limit", path: "/blog/v1/post/?limit=9223372036854775807&from=1", wantLen: visible - 1, wantHead: "Concurrency Patterns in Go"},
		{name: "garbage falls back to defaults", path: "/blog/v1/post/?limit=abc&from=-3", wantLen: visible, wantHead: "Soldering Workshop Recap"},
		{name: "past the end", path: "/blog/v1/post/?from=100", wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(api, http.MethodGet, tt.path, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("want status code %v, got %v", http.StatusOK, rr.Code)
			}

			var resp ListResponse
			decode(t, rr, &resp)
			if !resp.Success {
				t.Error("want success true")
			}
			if resp.Total != int64(visible) {
				t.Errorf("want total %d, got %d", visible, resp.Total)
			}
			if len(resp.Posts) != tt.wantLen {
				t.Fatalf("want %d posts, got %d", tt.wantLen, len(resp.Posts))
			}
			if tt.wantLen > 0 && resp.Posts[0].Title != tt.wantHead {
				t.Errorf("want first post %q, got %q", tt.wantHead, resp.Posts[0].Title)
			}
			for i := 1; i < len(resp.Posts); i++ {
				if resp.Posts[i].Date.After(resp.Posts[i-1].Date) {
					t.Errorf("posts not newest first at index %d", i)
				}
			}
		})
	}
}

func TestAPI_listPostsHandlerEmptyDB(t *testing.T) {
	api := New("blog", posts.New(memdb.New()), nil, DefaultPrefix)

	rr := serve(api, http.MethodGet, "/blog/v1/post/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"success":true,"total":0,"posts":[]}` {
		t.Errorf("want empty list body, got %s", got)
	}
}

func TestAPI_filterPostsHandler(t *testing.T) {
	api, _ := seededAPI(t)

	tests := []struct {
		name       string
		query      string
		statusWant int
		titlesWant []string
	}{
		{
			name:       "course ascending",
			query:      "course=Workshop&sortByDate=asc",
			statusWant: http.StatusOK,
			titlesWant: []string{"3D Printing Workshop", "Soldering Workshop Recap"},
		},
		{
			name:       "course with space",
			query:      "course=Supervised%20Practice&sortByDate=desc",
			statusWant: http.StatusOK,
			titlesWant: []string{"Practice Log: Week 2", "Practice Log: Week 1"},
		},
		{
			name:       "single day",
			query:      "startDate=2025-03-13&sortByDate=asc",
			statusWant: http.StatusOK,
			titlesWant: []string{"Intro to Go", "Concurrency Patterns in Go"},
		},
		{
			name:       "hidden posts excluded",
			query:      "title=generics",
			statusWant: http.StatusOK,
			titlesWant: []string{},
		},
		{name: "bad sort", query: "sortByDate=newest", statusWant: http.StatusBadRequest},
		{name: "bad course", query: "course=Cooking", statusWant: http.StatusBadRequest},
		{name: "bad date", query: "startDate=13/03/2025", statusWant: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(api, http.MethodGet, "/blog/v1/post/filter?"+tt.query, "")
			if rr.Code != tt.statusWant {
				t.Fatalf("want status code %v, got %v: %s", tt.statusWant, rr.Code, rr.Body.String())
			}
			if tt.statusWant != http.StatusOK {
				return
			}

			var resp PostsResponse
			decode(t, rr, &resp)
			got := []string{}
			for _, p := range resp.Posts {
				got = append(got, p.Title)
			}
			if !reflect.DeepEqual(tt.titlesWant, got) {
				t.Errorf("want titles %v, got %v", tt.titlesWant, got)
			}
		})
	}
}

func TestAPI_getPostHandler(t *testing.T) {
	api, testPosts := seededAPI(t)

	for _, want := range testPosts {
		rr := serve(api, http.MethodGet, "/blog/v1/post/"+want.ID.Hex(), "")
		if rr.Code != http.StatusOK {
			t.Fatalf("want status code %v for %q, got %v", http.StatusOK, want.Title, rr.Code)
		}

		var resp PostResponse
		decode(t, rr, &resp)
		if !resp.Success {
			t.Error("want success true")
		}
		if !reflect.DeepEqual(want, resp.Post) {
			t.Errorf("want post\n%+v\n\ngot post\n%+v\n", want, resp.Post)
		}
	}
}

func TestAPI_postByIDInvalid(t *testing.T) {
	api, _ := seededAPI(t)
	missing := primitive.NewObjectID().Hex()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		statusWant int
	}{
		{name: "get not found", method: http.MethodGet, path: "/blog/v1/post/" + missing, statusWant: http.StatusNotFound},
		{name: "delete not found", method: http.MethodDelete, path: "/blog/v1/post/" + missing, statusWant: http.StatusNotFound},
		{name: "comment not found", method: http.MethodPatch, path: "/blog/v1/post/" + missing, body: `{"username":"ana","text":"hi"}`, statusWant: http.StatusNotFound},
		{name: "get bad id", method: http.MethodGet, path: "/blog/v1/post/123", statusWant: http.StatusBadRequest},
		{name: "delete bad id", method: http.MethodDelete, path: "/blog/v1/post/not-an-object-id", statusWant: http.StatusBadRequest},
		{name: "comment bad id", method: http.MethodPatch, path: "/blog/v1/post/xyz", body: `{"username":"ana","text":"hi"}`, statusWant: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(api, tt.method, tt.path, tt.body)
			if rr.Code != tt.statusWant {
				t.Fatalf("want status code %v, got %v: %s", tt.statusWant, rr.Code, rr.Body.String())
			}

			if tt.statusWant == http.StatusNotFound {
				var resp ErrorResponse
				decode(t, rr, &resp)
				if resp.Success || resp.Msg != "Post not found" {
					t.Errorf("want not found envelope, got %+v", resp)
				}
				return
			}

			var resp ValidationErrorResponse
			decode(t, rr, &resp)
			if msgs := resp.Errors["pid"]; len(msgs) != 1 || msgs[0] != "Invalid Post ID format" {
				t.Errorf("want pid format error, got %v", resp.Errors)
			}
		})
	}
}

func TestAPI_deletePostHandler(t *testing.T) {
	api, testPosts := seededAPI(t)
	path := "/blog/v1/post/" + testPosts[3].ID.Hex()

	rr := serve(api, http.MethodDelete, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
	var resp DeleteResponse
	decode(t, rr, &resp)
	if resp.Message == "" {
		t.Error("want confirmation message")
	}

	rr = serve(api, http.MethodDelete, path, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v on second delete, got %v", http.StatusNotFound, rr.Code)
	}
}

func TestAPI_addCommentHandler(t *testing.T) {
	api, testPosts := seededAPI(t)
	target := testPosts[0]
	path := "/blog/v1/post/" + target.ID.Hex()

	for _, text := range []string{"C1", "C2"} {
		rr := serve(api, http.MethodPatch, path, `{"username":" ana ","text":"`+text+`"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("want status code %v, got %v: %s", http.StatusOK, rr.Code, rr.Body.String())
		}
	}

	rr := serve(api, http.MethodGet, path, "")
	var resp PostResponse
	decode(t, rr, &resp)

	got := resp.Post.Comments
	if len(got) != len(target.Comments)+2 {
		t.Fatalf("want %d comments, got %d", len(target.Comments)+2, len(got))
	}
	if got[0].Text != "C2" || got[1].Text != "C1" {
		t.Errorf("want C2 then C1 first, got %q then %q", got[0].Text, got[1].Text)
	}
	if got[0].Username != "ana" {
		t.Errorf("want trimmed username %q, got %q", "ana", got[0].Username)
	}
	if !reflect.DeepEqual(target.Comments, got[2:]) {
		t.Errorf("older comments changed: want %+v, got %+v", target.Comments, got[2:])
	}
}

func TestAPI_addCommentHandlerValidation(t *testing.T) {
	api, _ := seededAPI(t)

	rr := serve(api, http.MethodPatch, "/blog/v1/post/bad", `{"username":"al"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want status code %v, got %v", http.StatusBadRequest, rr.Code)
	}

	var resp ValidationErrorResponse
	decode(t, rr, &resp)
	want := validate.FieldErrors{
		"pid":      {"Invalid Post ID format"},
		"username": {"Username must be at least 3 characters long"},
		"text":     {"Text is required", "Text must be at least 1 character long"},
	}
	if !reflect.DeepEqual(want, resp.Errors) {
		t.Errorf("want errors %v, got %v", want, resp.Errors)
	}
}

func TestAPI_postLifecycle(t *testing.T) {
	api := New("blog", posts.New(memdb.New()), nil, DefaultPrefix)

	rr := serve(api, http.MethodPost, "/blog/v1/post/",
		`{"title":"Intro to Go","content":"Go is a compiled language designed at Google","course":"Technology"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: want status code %v, got %v", http.StatusCreated, rr.Code)
	}
	var created PostResponse
	decode(t, rr, &created)
	path := "/blog/v1/post/" + created.Post.ID.Hex()

	rr = serve(api, http.MethodGet, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: want status code %v, got %v", http.StatusOK, rr.Code)
	}
	var fetched PostResponse
	decode(t, rr, &fetched)
	if fetched.Post.Title != "Intro to Go" ||
		fetched.Post.Content != "Go is a compiled language designed at Google" ||
		fetched.Post.Course != models.CourseTechnology {
		t.Errorf("get: unexpected post %+v", fetched.Post)
	}

	rr = serve(api, http.MethodPatch, path, `{"username":"ana","text":"nice"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: want status code %v, got %v", http.StatusOK, rr.Code)
	}
	var commented models.Post
	decode(t, rr, &commented)
	if len(commented.Comments) == 0 || commented.Comments[0].Username != "ana" {
		t.Errorf("patch: want first comment by ana, got %+v", commented.Comments)
	}

	rr = serve(api, http.MethodDelete, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: want status code %v, got %v", http.StatusOK, rr.Code)
	}

	rr = serve(api, http.MethodGet, path, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete: want status code %v, got %v", http.StatusNotFound, rr.Code)
	}
}

func TestAPI_routesWithoutPrefix(t *testing.T) {
	api := New("blog", posts.New(memdb.New()), nil, "")

	rr := serve(api, http.MethodGet, "/post/", "")
	if rr.Code != http.StatusOK {
		t.Errorf("want status code %v, got %v", http.StatusOK, rr.Code)
	}

	rr = serve(api, http.MethodGet, "/blog/v1/post/", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v, got %v", http.StatusNotFound, rr.Code)
	}
}

func TestAPI_methodNotAllowed(t *testing.T) {
	api, _ := seededAPI(t)

	rr := serve(api, http.MethodPut, "/blog/v1/post/", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("want status code %v, got %v", http.StatusMethodNotAllowed, rr.Code)
	}
}

// brokenStorage fails every read and ping.
type brokenStorage struct {
	*memdb.Store
}

var errBroken = errors.New("connection reset")

func (brokenStorage) Ping(ctx context.Context) error { return errBroken }

func (brokenStorage) Posts(ctx context.Context, q storage.Query) ([]models.Post, error) {
	return nil, errBroken
}

func (brokenStorage) Post(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	return models.Post{}, errBroken
}

func TestAPI_storageFailures(t *testing.T) {
	api := New("blog", posts.New(brokenStorage{memdb.New()}), nil, DefaultPrefix)

	tests := []struct {
		name    string
		path    string
		msgWant string
	}{
		{name: "list", path: "/blog/v1/post/", msgWant: "Error fetching posts"},
		{name: "filter", path: "/blog/v1/post/filter", msgWant: "Error filtering posts"},
		{name: "get", path: "/blog/v1/post/" + primitive.NewObjectID().Hex(), msgWant: "Error fetching post"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(api, http.MethodGet, tt.path, "")
			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("want status code %v, got %v", http.StatusInternalServerError, rr.Code)
			}

			var resp ErrorResponse
			decode(t, rr, &resp)
			if resp.Success || resp.Msg != tt.msgWant || !strings.Contains(resp.Error, errBroken.Error()) {
				t.Errorf("want error envelope %q with reason, got %+v", tt.msgWant, resp)
			}
		})
	}
}

func TestAPI_healthHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         storage.Storage
		statusWant int
	}{
		{name: "healthy", db: memdb.New(), statusWant: http.StatusOK},
		{name: "storage down", db: brokenStorage{memdb.New()}, statusWant: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := New("blog", posts.New(tt.db), nil, DefaultPrefix)

			rr := serve(api, http.MethodGet, "/health", "")
			if rr.Code != tt.statusWant {
				t.Errorf("want status code %v, got %v", tt.statusWant, rr.Code)
			}
		})
	}
}
