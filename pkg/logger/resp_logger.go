// Package logger wraps http.ResponseWriter to remember what a handler sent.
package logger

import "net/http"

// ResponseLogger records the status code and body size written through it.
type ResponseLogger struct {
	w       http.ResponseWriter
	status  int
	written int64
	wrote   bool
}

func New(w http.ResponseWriter) *ResponseLogger {
	return &ResponseLogger{w: w, status: http.StatusOK}
}

// WriteHeader keeps only the first status, like net/http does.
func (l *ResponseLogger) WriteHeader(code int) {
	if l.wrote {
		return
	}
	l.wrote = true
	l.status = code
	l.w.WriteHeader(code)
}

func (l *ResponseLogger) Write(b []byte) (int, error) {
	l.wrote = true
	n, err := l.w.Write(b)
	l.written += int64(n)
	return n, err
}

func (l *ResponseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *ResponseLogger) Status() int {
	return l.status
}

// Written is the number of body bytes sent so far.
func (l *ResponseLogger) Written() int64 {
	return l.written
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (l *ResponseLogger) Unwrap() http.ResponseWriter {
	return l.w
}
