package api

import (
	"time"

	"blog/pkg/models"
	"blog/pkg/validate"
)

// LogEntry is the per-request record shipped to Kafka.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Bytes      int64     `json:"bytes"`
	Duration   float64   `json:"duration_sec"`
	Service    string    `json:"service"`
}

type PostResponse struct {
	Success bool        `json:"success"`
	Msg     string      `json:"msg,omitempty"`
	Post    models.Post `json:"post"`
}

type ListResponse struct {
	Success bool          `json:"success"`
	Total   int64         `json:"total"`
	Posts   []models.Post `json:"posts"`
}

type PostsResponse struct {
	Success bool          `json:"success"`
	Posts   []models.Post `json:"posts"`
}

type DeleteResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Error   string `json:"error,omitempty"`
}

type ValidationErrorResponse struct {
	Success bool                 `json:"success"`
	Msg     string               `json:"msg"`
	Errors  validate.FieldErrors `json:"errors"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
