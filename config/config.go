package config

import (
	"time"

	"github.com/yusufsyaifudin/kirimsurat/pkg/mailclient"
)

// DefaultPacing is the delay between two recipients when none is configured.
const DefaultPacing = 100 * time.Millisecond

// HTTPServer struct for HTTP Transport configuration
type HTTPServer struct {
	Port int `yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Transport is a configuration for the REST API server
type Transport struct {
	HTTP HTTPServer `yaml:"http"`
}

// SMTP selects the relay. Explicit values win over the provider preset.
type SMTP struct {
	Provider string `yaml:"provider"`

	mailclient.TransportConfig `yaml:",inline"`

	OpenTimeout     time.Duration `yaml:"openTimeout"`
	TransmitTimeout time.Duration `yaml:"transmitTimeout"`
}

// Message is the template and run options of the send command.
type Message struct {
	From     string `yaml:"from"`
	FromName string `yaml:"fromName"`
	Subject  string `yaml:"subject"`

	// Body is used as is, BodyFile is read when Body is empty.
	Body     string `yaml:"body"`
	BodyFile string `yaml:"bodyFile"`
	Format   string `yaml:"format"`

	Recipients    string   `yaml:"recipients"` // .csv or .xlsx file path
	AddressColumn string   `yaml:"addressColumn"`
	Attachments   []string `yaml:"attachments"`

	// Pacing nil means DefaultPacing, "0s" disables the delay.
	Pacing *time.Duration `yaml:"pacing"`
}

// PacingOrDefault returns the configured pacing or DefaultPacing.
func (m Message) PacingOrDefault() time.Duration {
	if m.Pacing == nil {
		return DefaultPacing
	}

	return *m.Pacing
}

type Tracing struct {
	// JaegerEndpoint is the collector url, tracing is disabled when empty.
	JaegerEndpoint string `yaml:"jaegerEndpoint"`
	Environment    string `yaml:"environment"`
}

type Log struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info error"`
}

// Config contains application config
type Config struct {
	SMTP      SMTP      `yaml:"smtp"`
	Message   Message   `yaml:"message"`
	Transport Transport `yaml:"transport"`
	Tracing   Tracing   `yaml:"tracing"`
	Log       Log       `yaml:"log"`
}
