package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"blog/pkg/logger"
)

const logWriteTimeout = 10 * time.Second

type ctxKeyRequestID struct{}

var RequestIDKey = ctxKeyRequestID{}

// LogWriter receives request log entries. *kafka.Writer satisfies it.
type LogWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				log.Errorf("[requestIDMiddleware] failed to generate request ID for %v: %v", r.RemoteAddr, err)
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Msg: "Internal Server Error"})
				return
			}
			reqID = id.String()
			log.Debugf("[requestIDMiddleware] generated request ID:%s for %v", reqID, r.RemoteAddr)
		}

		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (api *API) headerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PATCH, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Request-Id, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware sends one LogEntry per request to lw. Sending happens in
// the background so a slow broker never delays the response.
func (api *API) loggingMiddleware(lw LogWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rl := logger.New(w)
			defer func() {
				entry := LogEntry{
					Timestamp:  time.Now().UTC(),
					IP:         getClientIP(r),
					StatusCode: rl.Status(),
					RequestID:  GetRequestID(r.Context()),
					Method:     r.Method,
					Path:       r.URL.Path,
					Bytes:      rl.Written(),
					Duration:   time.Since(start).Seconds(),
					Service:    api.ServiceName,
				}
				go sendLogEntry(lw, entry)
			}()

			next.ServeHTTP(rl, r)
		})
	}
}

func sendLogEntry(lw LogWriter, entry LogEntry) {
	jsonEntry, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("[loggingMiddleware] failed to marshal log entry for request %s", entry.RequestID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(entry.RequestID), Value: jsonEntry}
	if err := lw.WriteMessages(ctx, msg); err != nil {
		log.Errorf("[loggingMiddleware] failed to write log to Kafka: %v", err)
		return
	}
	log.Debugf("[loggingMiddleware] log entry sent to Kafka request_id:%s", entry.RequestID)
}

func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	return ip
}
