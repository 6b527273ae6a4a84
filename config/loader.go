package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/yusufsyaifudin/kirimsurat/pkg/mailclient"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
	"github.com/yusufsyaifudin/kirimsurat/pkg/validator"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvSMTPPassword supplies the relay password when the file does not set one.
const EnvSMTPPassword = "KIRIMSURAT_SMTP_PASSWORD"

// DefaultFile is the config file read when none is given.
const DefaultFile = "config.yml"

// Load reads the YAML file, applies the environment and the provider preset.
// Unknown fields are tolerated.
func Load(fileName string) (cfg Config, err error) {
	fileContent, err := os.ReadFile(fileName)
	if err != nil {
		err = fmt.Errorf("error read file config %s: %w", fileName, err)
		return
	}

	return Parse(fileContent, os.Getenv)
}

// Parse decodes YAML content. getenv is usually os.Getenv.
func Parse(content []byte, getenv func(string) string) (cfg Config, err error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(false)
	err = dec.Decode(&cfg)
	if err != nil {
		err = fmt.Errorf("error decode yaml config: %w", err)
		return
	}

	if cfg.SMTP.Password == "" && getenv != nil {
		cfg.SMTP.Password = getenv(EnvSMTPPassword)
	}

	cfg.SMTP.TransportConfig, err = cfg.SMTP.Resolve()
	if err != nil {
		return
	}

	if cfg.SMTP.Security == "" {
		cfg.SMTP.Security = mailclient.SecurityStartTLS
	}

	if cfg.Message.AddressColumn == "" {
		cfg.Message.AddressColumn = recipient.DefaultAddressColumn
	}

	return
}

// Preflight checks everything a send needs before any connection is made.
// Every problem is reported, not only the first.
func (c Config) Preflight() error {
	var err error

	if c.Message.From == "" {
		err = multierr.Append(err, errors.New("message.from is required"))
	} else if !recipient.IsPlausibleAddress(c.Message.From) {
		err = multierr.Append(err, fmt.Errorf("message.from %q is not a valid address", c.Message.From))
	}

	if c.Message.Subject == "" {
		err = multierr.Append(err, errors.New("message.subject is required"))
	}

	if c.Message.Body == "" && c.Message.BodyFile == "" {
		err = multierr.Append(err, errors.New("message.body or message.bodyFile is required"))
	}

	if _, _err := mailmsg.ParseBodyFormat(c.Message.Format); _err != nil {
		err = multierr.Append(err, fmt.Errorf("message.format: %w", _err))
	}

	if c.Message.Pacing != nil && *c.Message.Pacing < 0 {
		err = multierr.Append(err, errors.New("message.pacing must not be negative"))
	}

	if c.SMTP.Host == "" {
		err = multierr.Append(err, errors.New("smtp.host is required"))
	}

	if c.SMTP.Port == 0 {
		err = multierr.Append(err, errors.New("smtp.port is required"))
	}

	if c.SMTP.Host != "" && c.SMTP.Port != 0 {
		if _err := validator.Validate(c.SMTP.TransportConfig); _err != nil {
			err = multierr.Append(err, fmt.Errorf("smtp: %w", _err))
		}
	}

	if _err := validator.Validate(c.Log); _err != nil {
		err = multierr.Append(err, fmt.Errorf("log: %w", _err))
	}

	return err
}

// LoadBody returns the body text, reading BodyFile when Body is empty.
func (m Message) LoadBody() (string, error) {
	if m.Body != "" || m.BodyFile == "" {
		return m.Body, nil
	}

	b, err := os.ReadFile(m.BodyFile)
	if err != nil {
		return "", fmt.Errorf("error read body file %s: %w", m.BodyFile, err)
	}

	return string(b), nil
}
