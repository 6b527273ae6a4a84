package mailmsg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyAttachmentName = errors.New("attachment name is empty")
	ErrHeaderInjection     = errors.New("header value contains line break")
	ErrEmptyRecipient      = errors.New("recipient address is empty")
)

// BodyFormat is the content type of the body part, fixed for a whole run.
type BodyFormat string

const (
	FormatPlain BodyFormat = "plain"
	FormatHTML  BodyFormat = "html"
)

func (f BodyFormat) String() string {
	return string(f)
}

// ContentType returns the MIME type of the body part.
func (f BodyFormat) ContentType() string {
	if f == FormatHTML {
		return "text/html"
	}

	return "text/plain"
}

// ParseBodyFormat accepts "plain", "text", "text/plain", "html" and "text/html". Empty means plain.
func ParseBodyFormat(s string) (BodyFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "text", "text/plain":
		return FormatPlain, nil
	case "html", "text/html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown body format %q", s)
	}
}

// Attachment is a named payload sent identically to every recipient of a run.
// Content must be treated as read-only.
type Attachment struct {
	Name    string
	Content []byte
}

// Message is a wire-ready message plus its envelope.
type Message struct {
	ID   string
	From string
	To   string
	data []byte
}

// Bytes returns the encoded message. The returned slice must not be modified.
func (m *Message) Bytes() []byte {
	return m.data
}

// Len returns the size of the encoded message in bytes.
func (m *Message) Len() int {
	return len(m.data)
}

// WriteTo writes the encoded message to w.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	return bytes.NewReader(m.data).WriteTo(w)
}
