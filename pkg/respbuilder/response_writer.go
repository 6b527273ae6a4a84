package respbuilder

import (
	"net/http"
	"sync"

	"github.com/segmentio/encoding/json"
)

func WriteJSON(httpStatus int, rw http.ResponseWriter, r *http.Request, data interface{}) {
	tracer := MustExtract(r.Context())

	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Tracer-ID", tracer.AppTraceID)
	rw.WriteHeader(httpStatus)

	enc := json.NewEncoder(rw)
	err := enc.Encode(data)
	if err != nil {
		reason := ReasonMap[ErrValidation]
		errPayload, _ := json.Marshal(HTTPError{
			Err: ErrorEntity{
				Code:    reason.Code,
				Message: reason.Message,
				Debug:   err.Error(),
				TraceID: tracer.AppTraceID,
			},
		})

		_, _ = rw.Write(errPayload)
	}
}

// StreamWriter writes newline delimited JSON and flushes after every line.
// The status line is sent lazily on the first write.
type StreamWriter struct {
	rw      http.ResponseWriter
	traceID string

	lock    sync.Mutex
	started bool
}

func NewStreamWriter(rw http.ResponseWriter, r *http.Request) *StreamWriter {
	return &StreamWriter{
		rw:      rw,
		traceID: MustExtract(r.Context()).AppTraceID,
	}
}

// Started reports whether any line was written.
func (s *StreamWriter) Started() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.started
}

// Write encodes one line of the given type.
func (s *StreamWriter) Write(lineType string, data interface{}, errEntity *ErrorEntity) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.started {
		s.rw.Header().Set("Content-Type", "application/x-ndjson")
		s.rw.Header().Set("Tracer-ID", s.traceID)
		s.rw.Header().Set("X-Content-Type-Options", "nosniff")
		s.rw.WriteHeader(http.StatusOK)
		s.started = true
	}

	err := json.NewEncoder(s.rw).Encode(StreamLine{
		Type:    lineType,
		TraceID: s.traceID,
		Data:    data,
		Err:     errEntity,
	})
	if err != nil {
		return err
	}

	if f, ok := s.rw.(http.Flusher); ok {
		f.Flush()
	}

	return nil
}
