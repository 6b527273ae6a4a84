package respbuilder

type ErrKind int64

const (
	ErrUnhandled ErrKind = iota + 1
	ErrValidation
	ErrResourceNotFound
	ErrRelayUnavailable
)

type Reason struct {
	Code    string
	Message string
}

var ReasonMap = map[ErrKind]Reason{
	ErrUnhandled:        {Code: "01", Message: "unhandled error"},
	ErrValidation:       {Code: "02", Message: "error validation"},
	ErrResourceNotFound: {Code: "04", Message: "resource not found"},
	ErrRelayUnavailable: {Code: "06", Message: "smtp relay unavailable"},
}

// ErrorEntity contain code, message, debug (*if applicable) and trace id.
type ErrorEntity struct {
	Code    string `json:"error_code"`        // to handle by FE
	Message string `json:"error_description"` // to handle by FE (string version of the error code)
	Debug   string `json:"debug,omitempty"`   // technical error
	TraceID string `json:"trace_id"`
}

// HTTPError follow Facebook error response object:
// https://developers.facebook.com/docs/graph-api/using-graph-api/error-handling/
type HTTPError struct {
	Err ErrorEntity `json:"error"`
}

func (e HTTPError) Error() string {
	return e.Err.Message + ": " + e.Err.Debug
}

// HTTPSuccess success response always wrap in data key.
type HTTPSuccess struct {
	TraceID string      `json:"trace_id"`
	Data    interface{} `json:"data"`
}

// StreamLine is one line of a newline delimited JSON response.
// Type tells which of the other fields is set.
type StreamLine struct {
	Type    string       `json:"type"`
	TraceID string       `json:"trace_id"`
	Data    interface{}  `json:"data,omitempty"`
	Err     *ErrorEntity `json:"error,omitempty"`
}
