package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AuditLogger is an async audit log writer for mutating key API calls.
type AuditLogger struct {
	logger zerolog.Logger
	ch     chan auditEntry
	done   chan struct{}
	once   sync.Once
}

type auditEntry struct {
	RequestID   string
	RemoteAddr  string
	Method      string
	Path        string
	StatusCode  int
	RequestBody json.RawMessage
}

func NewAuditLogger(logger zerolog.Logger) *AuditLogger {
	al := &AuditLogger{
		logger: logger.With().Str("component", "audit").Logger(),
		ch:     make(chan auditEntry, 1024),
		done:   make(chan struct{}),
	}
	go al.drain()
	return al
}

func (al *AuditLogger) drain() {
	defer close(al.done)
	for entry := range al.ch {
		ev := al.logger.Info().
			Str("request_id", entry.RequestID).
			Str("remote_addr", entry.RemoteAddr).
			Str("method", entry.Method).
			Str("path", entry.Path).
			Int("status", entry.StatusCode)
		if len(entry.RequestBody) > 0 {
			ev = ev.RawJSON("body", entry.RequestBody)
		}
		ev.Msg("audit")
	}
}

// Close stops accepting entries and waits until the buffered ones are written.
func (al *AuditLogger) Close() {
	al.once.Do(func() { close(al.ch) })
	<-al.done
}

// Middleware returns a chi middleware that records POST requests.
func (al *AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		// Read and re-buffer the request body. A read error, such as an
		// exceeded body limit, is replayed to the handler after the bytes.
		var bodyBytes []byte
		var readErr error
		if r.Body != nil {
			bodyBytes, readErr = io.ReadAll(r.Body)
			var replay io.Reader = bytes.NewReader(bodyBytes)
			if readErr != nil {
				replay = io.MultiReader(replay, errReader{readErr})
			}
			r.Body = io.NopCloser(replay)
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		var sanitizedBody json.RawMessage
		if readErr == nil && len(bodyBytes) > 0 && json.Valid(bodyBytes) {
			sanitizedBody = sanitizeBody(bodyBytes)
		}

		select {
		case al.ch <- auditEntry{
			RequestID:   middleware.GetReqID(r.Context()),
			RemoteAddr:  r.RemoteAddr,
			Method:      r.Method,
			Path:        r.URL.Path,
			StatusCode:  sw.status,
			RequestBody: sanitizedBody,
		}:
		default:
			al.logger.Warn().Msg("audit log buffer full, dropping entry")
		}
	})
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// sensitiveFields are fields that should be redacted from audit logs.
var sensitiveFields = map[string]bool{
	"key": true, "api_key": true, "secret": true, "token": true,
}

func sanitizeBody(body []byte) json.RawMessage {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		// Not an object; nothing we can selectively redact.
		return nil
	}
	for k := range data {
		if sensitiveFields[k] {
			data[k] = "[REDACTED]"
		}
	}
	sanitized, _ := json.Marshal(data)
	return sanitized
}
