package mailclient

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrStartTLSUnsupported = errors.New("relay does not advertise STARTTLS")
	ErrConnectionLost      = errors.New("connection to relay lost")
	ErrSessionClosed       = errors.New("session already closed")
)

// Security selects how the connection to the relay is protected.
type Security string

const (
	// SecurityStartTLS connects in plain text and upgrades with STARTTLS before authenticating.
	SecurityStartTLS Security = "starttls"

	// SecurityTLS connects with implicit TLS, usually on port 465.
	SecurityTLS Security = "tls"

	// SecurityNone never encrypts. Only for local relays and tests.
	SecurityNone Security = "none"
)

// AuthMechanism is the SASL mechanism used when a username is configured.
type AuthMechanism string

const (
	AuthPlain AuthMechanism = "plain"
	AuthLogin AuthMechanism = "login"
)

// TransportConfig describes one relay account.
type TransportConfig struct {
	Host string `json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port int    `json:"port" yaml:"port" validate:"required,min=1,max=65535"`

	// Username may be empty for relays that accept unauthenticated submission, then AUTH is skipped.
	Username string `json:"username" yaml:"username" validate:"-"`
	Password string `json:"password" yaml:"password" validate:"required_with=Username"`

	// AuthIdentity may be left blank to indicate that it is the same as the username.
	AuthIdentity  string        `json:"auth_identity" yaml:"authIdentity" validate:"-"`
	AuthMechanism AuthMechanism `json:"auth_mechanism" yaml:"authMechanism" validate:"omitempty,oneof=plain login"`

	Security           Security `json:"security" yaml:"security" validate:"required,oneof=starttls tls none"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify" yaml:"insecureSkipVerify" validate:"-"`
}

// Addr returns host:port.
func (c TransportConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

const (
	DefaultOpenTimeout     = 30 * time.Second
	DefaultTransmitTimeout = 60 * time.Second
	closeTimeout           = 10 * time.Second
)
