package mailmsg

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/yusufsyaifudin/kirimsurat/pkg/validator"
	"gopkg.in/mail.v2"
)

const octetStream = "application/octet-stream"

// knownTypes pins the types people usually attach, so the result does not depend on the host mime tables.
var knownTypes = map[string]string{
	".pdf":  "application/pdf",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".zip":  "application/zip",
	".json": "application/json",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// ContentType derives the attachment content type from the file name extension.
// Unknown extensions fall back to application/octet-stream.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || ext == "." {
		return octetStream
	}

	if ct, ok := knownTypes[ext]; ok {
		return ct
	}

	mediaType, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil || mediaType == "" {
		return octetStream
	}

	return mediaType
}

// IDGenerator produces unique numbers for Message-ID headers. *sonyflake.Sonyflake implements it.
type IDGenerator interface {
	NextID() (uint64, error)
}

type BuilderConfig struct {
	Format      BodyFormat   `validate:"required,oneof=plain html"`
	Attachments []Attachment `validate:"-"`
	IDGen       IDGenerator  `validate:"required"`

	// Now is used for the Date header, time.Now when nil.
	Now func() time.Time `validate:"-"`
}

// Builder assembles one message per recipient with the run's body format and attachments.
// It is safe to reuse for the whole run.
type Builder struct {
	format      BodyFormat
	attachments []Attachment
	idGen       IDGenerator
	now         func() time.Time
}

func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	err := validator.Validate(cfg)
	if err != nil {
		err = fmt.Errorf("message builder config: %w", err)
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	attachments := make([]Attachment, len(cfg.Attachments))
	copy(attachments, cfg.Attachments)

	return &Builder{
		format:      cfg.Format,
		attachments: attachments,
		idGen:       cfg.IDGen,
		now:         now,
	}, nil
}

// Format returns the body format of the run.
func (b *Builder) Format() BodyFormat {
	return b.format
}

// Input holds the per-recipient values of one message.
type Input struct {
	From     string
	FromName string
	To       string
	Subject  string
	Body     string
}

// Build encodes one message. Errors are scoped to this recipient.
func (b *Builder) Build(in Input) (*Message, error) {
	if strings.TrimSpace(in.To) == "" {
		return nil, ErrEmptyRecipient
	}

	for _, v := range []string{in.From, in.FromName, in.To} {
		if strings.ContainsAny(v, "\r\n") {
			return nil, ErrHeaderInjection
		}
	}

	for i, att := range b.attachments {
		if strings.TrimSpace(att.Name) == "" {
			return nil, fmt.Errorf("attachment %d: %w", i+1, ErrEmptyAttachmentName)
		}

		if strings.ContainsAny(att.Name, "\r\n") {
			return nil, fmt.Errorf("attachment %d: %w", i+1, ErrHeaderInjection)
		}
	}

	msgID, err := b.messageID(in.From)
	if err != nil {
		return nil, err
	}

	m := mail.NewMessage(mail.SetCharset("UTF-8"))
	if in.FromName != "" {
		m.SetAddressHeader("From", in.From, in.FromName)
	} else {
		m.SetHeader("From", in.From)
	}

	m.SetHeader("To", in.To)
	m.SetHeader("Subject", foldLines(in.Subject))
	m.SetHeader("Message-ID", msgID)
	m.SetDateHeader("Date", b.now())
	m.SetBody(b.format.ContentType(), in.Body)

	for _, att := range b.attachments {
		m.Attach(att.Name, attachmentSettings(att)...)
	}

	buf := &bytes.Buffer{}
	if _, err = m.WriteTo(buf); err != nil {
		err = fmt.Errorf("encode message: %w", err)
		return nil, err
	}

	return &Message{
		ID:   msgID,
		From: in.From,
		To:   in.To,
		data: buf.Bytes(),
	}, nil
}

func (b *Builder) messageID(from string) (string, error) {
	id, err := b.idGen.NextID()
	if err != nil {
		return "", fmt.Errorf("generate message id: %w", err)
	}

	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}

	return fmt.Sprintf("<%d.%d@%s>", id, b.now().UnixNano(), domain), nil
}

// attachmentSettings reads the shared payload on write, the slice is never modified.
func attachmentSettings(att Attachment) []mail.FileSetting {
	name := filepath.Base(att.Name)
	payload := att.Content
	contentType := mime.FormatMediaType(ContentType(name), map[string]string{"name": name})
	if contentType == "" {
		contentType = ContentType(name)
	}

	return []mail.FileSetting{
		mail.SetHeader(map[string][]string{
			"Content-Type": {contentType},
		}),
		mail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(payload)
			return err
		}),
	}
}

func foldLines(s string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(s)
}
