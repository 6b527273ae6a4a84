package extd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/internal/dispatch"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

// LoadRecipients reads the recipient table at path, CSV or xlsx by extension.
func LoadRecipients(path string) (*recipient.Set, error) {
	if path == "" {
		return nil, fmt.Errorf("recipients file is not set")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error open recipients file %s: %w", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	set, err := recipient.Read(path, f)
	if err != nil {
		return nil, fmt.Errorf("error read recipients file %s: %w", path, err)
	}

	return set, nil
}

// LoadAttachments reads every file once. The attachment name is the file base name.
func LoadAttachments(paths []string) ([]mailmsg.Attachment, error) {
	out := make([]mailmsg.Attachment, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("error read attachment %s: %w", p, err)
		}

		out = append(out, mailmsg.Attachment{
			Name:    filepath.Base(p),
			Content: content,
		})
	}

	return out, nil
}

// RunInput assembles the dispatch input from the loaded config.
// recipientsPath overrides message.recipients when not empty.
func RunInput(cfg config.Config, recipientsPath string) (in dispatch.Input, err error) {
	if recipientsPath == "" {
		recipientsPath = cfg.Message.Recipients
	}

	set, err := LoadRecipients(recipientsPath)
	if err != nil {
		return
	}

	attachments, err := LoadAttachments(cfg.Message.Attachments)
	if err != nil {
		return
	}

	body, err := cfg.Message.LoadBody()
	if err != nil {
		return
	}

	format, err := mailmsg.ParseBodyFormat(cfg.Message.Format)
	if err != nil {
		return
	}

	in = dispatch.Input{
		Recipients: set,
		Template: dispatch.Template{
			Subject: cfg.Message.Subject,
			Body:    body,
			Format:  format,
		},
		Attachments:   attachments,
		Transport:     cfg.SMTP.TransportConfig,
		From:          cfg.Message.From,
		FromName:      cfg.Message.FromName,
		AddressColumn: cfg.Message.AddressColumn,
		Pacing:        cfg.Message.PacingOrDefault(),
	}

	return
}
