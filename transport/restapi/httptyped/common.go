package httptyped

import (
	"encoding/base64"
	"fmt"

	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailclient"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

// TransportReq is the relay account of a request. Fields missing are taken from the provider preset.
type TransportReq struct {
	Provider string `json:"provider"`
	mailclient.TransportConfig
}

// Resolve applies the provider preset and the default security mode.
func (t TransportReq) Resolve() (mailclient.TransportConfig, error) {
	tc, err := config.ResolveTransport(t.Provider, t.TransportConfig)
	if err != nil {
		return tc, err
	}

	if tc.Security == "" {
		tc.Security = mailclient.SecurityStartTLS
	}

	return tc, nil
}

// RecipientsReq carries the rows as JSON objects. Columns fixes the column order,
// keys not listed are appended sorted by name.
type RecipientsReq struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

func (r RecipientsReq) Set() (*recipient.Set, error) {
	return recipient.FromRecords(r.Columns, r.Rows)
}

type AttachmentReq struct {
	Name          string `json:"name"`
	ContentBase64 string `json:"content_base64"`
}

func (a AttachmentReq) Decode() (mailmsg.Attachment, error) {
	content, err := base64.StdEncoding.DecodeString(a.ContentBase64)
	if err != nil {
		return mailmsg.Attachment{}, fmt.Errorf("attachment %q is not valid base64: %w", a.Name, err)
	}

	return mailmsg.Attachment{Name: a.Name, Content: content}, nil
}

// DecodeAttachments decodes every attachment, the first invalid one is reported.
func DecodeAttachments(in []AttachmentReq) ([]mailmsg.Attachment, error) {
	out := make([]mailmsg.Attachment, 0, len(in))
	for _, a := range in {
		att, err := a.Decode()
		if err != nil {
			return nil, err
		}

		out = append(out, att)
	}

	return out, nil
}
