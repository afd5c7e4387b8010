// Package api exposes the post service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"blog/pkg/models"
	"blog/pkg/posts"
	"blog/pkg/storage"
	"blog/pkg/validate"
)

const (
	DefaultPrefix = "/blog/v1"

	maxBodyBytes = 1 << 20
)

type API struct {
	ServiceName string
	Router      *mux.Router
	svc         *posts.Service
	lw          LogWriter
	prefix      string
}

// New builds the API and its routes under prefix. A nil lw disables request
// log shipping.
func New(name string, svc *posts.Service, lw LogWriter, prefix string) *API {
	api := API{
		ServiceName: name,
		Router:      mux.NewRouter(),
		svc:         svc,
		lw:          lw,
		prefix:      prefix,
	}
	api.endpoints()

	return &api
}

func (api *API) endpoints() {
	api.Router.Use(api.requestIDMiddleware)
	api.Router.Use(api.headerMiddleware)

	if api.lw != nil {
		api.Router.Use(api.loggingMiddleware(api.lw))
	}

	api.Router.HandleFunc("/health", api.healthHandler).Methods(http.MethodGet)

	r := api.Router
	if api.prefix != "" && api.prefix != "/" {
		r = api.Router.PathPrefix(api.prefix).Subrouter()
	}

	// filter goes first so it is not taken for a post id
	r.HandleFunc("/post/filter", api.filterPostsHandler).Methods(http.MethodGet)

	for _, path := range []string{"/post", "/post/"} {
		r.HandleFunc(path, api.createPostHandler).Methods(http.MethodPost)
		r.HandleFunc(path, api.listPostsHandler).Methods(http.MethodGet)
	}

	r.HandleFunc("/post/{pid}", api.getPostHandler).Methods(http.MethodGet)
	r.HandleFunc("/post/{pid}", api.deletePostHandler).Methods(http.MethodDelete)
	r.HandleFunc("/post/{pid}", api.addCommentHandler).Methods(http.MethodPatch)
}

func (api *API) createPostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var req validate.CreatePostRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Msg: "Invalid request body", Error: err.Error()})
		log.Debugf("[createPostHandler][%s] failed to decode body: %v", sID, err)
		return
	}
	if fe := req.Validate(); fe != nil {
		validationFailed(w, fe)
		log.Debugf("[createPostHandler][%s] %v", sID, fe)
		return
	}

	post, err := api.svc.Create(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Msg: "Error creating post", Error: err.Error()})
		if errors.Is(err, storage.ErrDuplicateContent) {
			log.Debugf("[createPostHandler][%s] %v", sID, err)
		} else {
			log.Errorf("[createPostHandler][%s] Create() returned error: %v", sID, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, PostResponse{Success: true, Msg: "Post created successfully", Post: post})
	log.Debugf("[createPostHandler][%s] post %s created for: %v", sID, post.ID.Hex(), r.RemoteAddr)
}

func (api *API) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	req := validate.NewListPostsRequest(r.URL.Query())
	page, err := api.svc.List(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Msg: "Error fetching posts", Error: err.Error()})
		log.Errorf("[listPostsHandler][%s] List() returned error: %v", sID, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Success: true, Total: page.Total, Posts: nonNil(page.Posts)})
	log.Debugf("[listPostsHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) filterPostsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	req := validate.NewFilterPostsRequest(r.URL.Query())
	if fe := req.Validate(); fe != nil {
		validationFailed(w, fe)
		log.Debugf("[filterPostsHandler][%s] %v", sID, fe)
		return
	}

	found, err := api.svc.Filter(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Msg: "Error filtering posts", Error: err.Error()})
		log.Errorf("[filterPostsHandler][%s] Filter() returned error: %v", sID, err)
		return
	}

	writeJSON(w, http.StatusOK, PostsResponse{Success: true, Posts: nonNil(found)})
	log.Debugf("[filterPostsHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) getPostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	id, fe := postID(r)
	if fe != nil {
		validationFailed(w, fe)
		log.Debugf("[getPostHandler][%s] %v", sID, fe)
		return
	}

	post, err := api.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Msg: "Post not found"})
			log.Debugf("[getPostHandler][%s] post %s not found", sID, id.Hex())
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Msg: "Error fetching post", Error: err.Error()})
		log.Errorf("[getPostHandler][%s] post ID:%s: %v", sID, id.Hex(), err)
		return
	}

	writeJSON(w, http.StatusOK, PostResponse{Success: true, Post: post})
	log.Debugf("[getPostHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	id, fe := postID(r)
	if fe != nil {
		validationFailed(w, fe)
		log.Debugf("[deletePostHandler][%s] %v", sID, fe)
		return
	}

	if err := api.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Msg: "Post not found"})
			log.Debugf("[deletePostHandler][%s] post %s not found", sID, id.Hex())
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Msg: "Error deleting post", Error: err.Error()})
		log.Errorf("[deletePostHandler][%s] post ID:%s: %v", sID, id.Hex(), err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Message: "Post deleted successfully"})
	log.Debugf("[deletePostHandler][%s] post %s deleted for: %v", sID, id.Hex(), r.RemoteAddr)
}

func (api *API) addCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var req validate.AddCommentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Msg: "Invalid request body", Error: err.Error()})
		log.Debugf("[addCommentHandler][%s] failed to decode body: %v", sID, err)
		return
	}

	id, idErrs := postID(r)
	if fe := validate.Merge(idErrs, req.Validate()); fe != nil {
		validationFailed(w, fe)
		log.Debugf("[addCommentHandler][%s] %v", sID, fe)
		return
	}

	post, err := api.svc.AddComment(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Msg: "Post not found"})
			log.Debugf("[addCommentHandler][%s] post %s not found", sID, id.Hex())
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Msg: "Error adding comment", Error: err.Error()})
		log.Errorf("[addCommentHandler][%s] post ID:%s: %v", sID, id.Hex(), err)
		return
	}

	writeJSON(w, http.StatusOK, post)
	log.Debugf("[addCommentHandler][%s] comment added to post %s for: %v", sID, id.Hex(), r.RemoteAddr)
}

func (api *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.svc.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		log.Warnf("[healthHandler] storage ping failed: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// postID validates the {pid} path variable.
func postID(r *http.Request) (primitive.ObjectID, validate.FieldErrors) {
	req := validate.PostIDRequest{PID: mux.Vars(r)["pid"]}
	if fe := req.Validate(); fe != nil {
		return primitive.NilObjectID, fe
	}
	return req.ObjectID(), nil
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched so
// validation reports the missing fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func validationFailed(w http.ResponseWriter, fe validate.FieldErrors) {
	writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{Msg: "Validation failed", Errors: fe})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("[writeJSON] failed to encode response data: %v", err)
	}
}

func nonNil(p []models.Post) []models.Post {
	if p == nil {
		return []models.Post{}
	}
	return p
}

// GetRequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
