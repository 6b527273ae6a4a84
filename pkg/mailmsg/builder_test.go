package mailmsg_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
)

type seqID struct {
	n   uint64
	err error
}

func (s *seqID) NextID() (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}

	return atomic.AddUint64(&s.n, 1), nil
}

type part struct {
	ContentType string
	Params      map[string]string
	Disposition string
	FileName    string
	Content     []byte
}

// readParts parses the wire message and decodes every leaf part.
func readParts(t *testing.T, raw []byte) (*mail.Message, []part) {
	t.Helper()

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)

	if !strings.HasPrefix(mediaType, "multipart/") {
		body := decodeBody(t, msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
		return msg, []part{{ContentType: mediaType, Params: params, Content: body}}
	}

	parts := make([]part, 0)
	reader := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := reader.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)

		ct, ctParams, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
		require.NoError(t, err)

		disp, dispParams, _ := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
		parts = append(parts, part{
			ContentType: ct,
			Params:      ctParams,
			Disposition: disp,
			FileName:    dispParams["filename"],
			Content:     decodeBody(t, p.Header.Get("Content-Transfer-Encoding"), p),
		})
	}

	return msg, parts
}

func decodeBody(t *testing.T, encoding string, r io.Reader) []byte {
	t.Helper()

	switch strings.ToLower(encoding) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return b
}

func newBuilder(t *testing.T, format mailmsg.BodyFormat, attachments ...mailmsg.Attachment) *mailmsg.Builder {
	t.Helper()

	b, err := mailmsg.NewBuilder(mailmsg.BuilderConfig{
		Format:      format,
		Attachments: attachments,
		IDGen:       &seqID{},
		Now: func() time.Time {
			return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		},
	})
	require.NoError(t, err)
	return b
}

func TestNewBuilder(t *testing.T) {
	t.Run("missing id generator", func(t *testing.T) {
		b, err := mailmsg.NewBuilder(mailmsg.BuilderConfig{Format: mailmsg.FormatPlain})
		assert.Nil(t, b)
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		b, err := mailmsg.NewBuilder(mailmsg.BuilderConfig{Format: "rtf", IDGen: &seqID{}})
		assert.Nil(t, b)
		assert.Error(t, err)
	})
}

func TestBuilder_Build(t *testing.T) {
	t.Run("attachments round trip", func(t *testing.T) {
		a1 := mailmsg.Attachment{Name: "invoice.pdf", Content: []byte("%PDF-1.4 fake pdf\x00\x01\x02")}
		a2 := mailmsg.Attachment{Name: "data.unknownext", Content: bytes.Repeat([]byte{0xff, 0x00, 'a'}, 200)}

		b := newBuilder(t, mailmsg.FormatPlain, a1, a2)
		msg, err := b.Build(mailmsg.Input{
			From:     "sender@example.com",
			FromName: "Sender",
			To:       "ann@example.com",
			Subject:  "Hello Ann",
			Body:     "Dear Ann,\n\nSee attached.",
		})
		require.NoError(t, err)
		assert.Equal(t, "sender@example.com", msg.From)
		assert.Equal(t, "ann@example.com", msg.To)

		header, parts := readParts(t, msg.Bytes())
		assert.Equal(t, "Hello Ann", header.Header.Get("Subject"))
		assert.Equal(t, "ann@example.com", header.Header.Get("To"))
		assert.Equal(t, msg.ID, header.Header.Get("Message-ID"))
		assert.NotEmpty(t, header.Header.Get("Date"))

		from, err := mail.ParseAddress(header.Header.Get("From"))
		require.NoError(t, err)
		assert.Equal(t, "Sender", from.Name)
		assert.Equal(t, "sender@example.com", from.Address)

		require.Len(t, parts, 3)
		assert.Equal(t, "text/plain", parts[0].ContentType)
		assert.Equal(t, "Dear Ann,\n\nSee attached.", strings.ReplaceAll(string(parts[0].Content), "\r\n", "\n"))

		assert.Equal(t, "application/pdf", parts[1].ContentType)
		assert.Equal(t, "invoice.pdf", parts[1].FileName)
		assert.Equal(t, a1.Content, parts[1].Content)

		assert.Equal(t, "application/octet-stream", parts[2].ContentType)
		assert.Equal(t, "data.unknownext", parts[2].FileName)
		assert.Equal(t, a2.Content, parts[2].Content)
	})

	t.Run("html body", func(t *testing.T) {
		b := newBuilder(t, mailmsg.FormatHTML)
		msg, err := b.Build(mailmsg.Input{
			From:    "sender@example.com",
			To:      "ann@example.com",
			Subject: "Hi",
			Body:    "<p>Hi</p>",
		})
		require.NoError(t, err)

		_, parts := readParts(t, msg.Bytes())
		require.Len(t, parts, 1)
		assert.Equal(t, "text/html", parts[0].ContentType)
		assert.Equal(t, "<p>Hi</p>", string(parts[0].Content))
	})

	t.Run("non ascii subject is encoded", func(t *testing.T) {
		b := newBuilder(t, mailmsg.FormatPlain)
		msg, err := b.Build(mailmsg.Input{
			From:    "sender@example.com",
			To:      "ann@example.com",
			Subject: "Halo Ánn",
			Body:    "x",
		})
		require.NoError(t, err)

		header, _ := readParts(t, msg.Bytes())
		decoded, err := new(mime.WordDecoder).DecodeHeader(header.Header.Get("Subject"))
		require.NoError(t, err)
		assert.Equal(t, "Halo Ánn", decoded)
	})

	t.Run("line breaks in subject are folded", func(t *testing.T) {
		b := newBuilder(t, mailmsg.FormatPlain)
		msg, err := b.Build(mailmsg.Input{
			From:    "sender@example.com",
			To:      "ann@example.com",
			Subject: "Hi\r\nBcc: evil@example.com",
			Body:    "x",
		})
		require.NoError(t, err)

		header, _ := readParts(t, msg.Bytes())
		assert.Equal(t, "Hi Bcc: evil@example.com", header.Header.Get("Subject"))
		assert.Empty(t, header.Header.Get("Bcc"))
	})

	t.Run("message ids are unique", func(t *testing.T) {
		b := newBuilder(t, mailmsg.FormatPlain)
		in := mailmsg.Input{From: "sender@example.com", To: "ann@example.com", Subject: "s", Body: "b"}

		m1, err := b.Build(in)
		require.NoError(t, err)
		m2, err := b.Build(in)
		require.NoError(t, err)
		assert.NotEqual(t, m1.ID, m2.ID)
		assert.True(t, strings.HasSuffix(m1.ID, "@example.com>"))
	})

	t.Run("empty attachment name fails only the build", func(t *testing.T) {
		shared := []mailmsg.Attachment{{Name: "", Content: []byte("x")}}
		b := newBuilder(t, mailmsg.FormatPlain, shared...)

		msg, err := b.Build(mailmsg.Input{From: "sender@example.com", To: "ann@example.com", Subject: "s", Body: "b"})
		assert.Nil(t, msg)
		assert.ErrorIs(t, err, mailmsg.ErrEmptyAttachmentName)
	})

	t.Run("header injection in address", func(t *testing.T) {
		b := newBuilder(t, mailmsg.FormatPlain)
		_, err := b.Build(mailmsg.Input{From: "sender@example.com", To: "ann@example.com\r\nBcc: x@y.z", Subject: "s", Body: "b"})
		assert.ErrorIs(t, err, mailmsg.ErrHeaderInjection)
	})

	t.Run("line break in attachment name", func(t *testing.T) {
		b := newBuilder(t, mailmsg.FormatPlain, mailmsg.Attachment{Name: "a.txt\r\nBcc: x@y.z", Content: []byte("x")})
		_, err := b.Build(mailmsg.Input{From: "sender@example.com", To: "ann@example.com", Subject: "s", Body: "b"})
		assert.ErrorIs(t, err, mailmsg.ErrHeaderInjection)
	})

	t.Run("empty recipient", func(t *testing.T) {
		b := newBuilder(t, mailmsg.FormatPlain)
		_, err := b.Build(mailmsg.Input{From: "sender@example.com", To: " ", Subject: "s", Body: "b"})
		assert.ErrorIs(t, err, mailmsg.ErrEmptyRecipient)
	})

	t.Run("id generator error", func(t *testing.T) {
		b, err := mailmsg.NewBuilder(mailmsg.BuilderConfig{
			Format: mailmsg.FormatPlain,
			IDGen:  &seqID{err: errors.New("clock moved backwards")},
		})
		require.NoError(t, err)

		_, err = b.Build(mailmsg.Input{From: "sender@example.com", To: "ann@example.com", Subject: "s", Body: "b"})
		assert.Error(t, err)
	})

	t.Run("shared attachments are not modified", func(t *testing.T) {
		payload := []byte("same bytes for everyone")
		shared := []mailmsg.Attachment{{Name: "note.txt", Content: payload}}
		b := newBuilder(t, mailmsg.FormatPlain, shared...)

		for _, to := range []string{"a@example.com", "b@example.com"} {
			msg, err := b.Build(mailmsg.Input{From: "sender@example.com", To: to, Subject: "s", Body: "b"})
			require.NoError(t, err)

			_, parts := readParts(t, msg.Bytes())
			require.Len(t, parts, 2)
			assert.Equal(t, payload, parts[1].Content)
		}

		assert.Equal(t, "note.txt", shared[0].Name)
		assert.Equal(t, []byte("same bytes for everyone"), shared[0].Content)
	})
}

func TestContentType(t *testing.T) {
	testCases := map[string]string{
		"report.PDF":   "application/pdf",
		"list.csv":     "text/csv",
		"photo.jpeg":   "image/jpeg",
		"archive":      "application/octet-stream",
		"trailingdot.": "application/octet-stream",
		"blob.zzzz":    "application/octet-stream",
		"sheet.xlsx":   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}

	for name, want := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, mailmsg.ContentType(name))
		})
	}
}

func TestParseBodyFormat(t *testing.T) {
	f, err := mailmsg.ParseBodyFormat("HTML")
	assert.NoError(t, err)
	assert.Equal(t, mailmsg.FormatHTML, f)

	f, err = mailmsg.ParseBodyFormat("")
	assert.NoError(t, err)
	assert.Equal(t, mailmsg.FormatPlain, f)
	assert.Equal(t, "text/plain", f.ContentType())

	_, err = mailmsg.ParseBodyFormat("markdown")
	assert.Error(t, err)
}
