package config

import (
	"fmt"
	"sort"

	"dario.cat/mergo"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailclient"
)

// Provider is a well known relay preset.
type Provider struct {
	Name      string                     `json:"name"`
	Transport mailclient.TransportConfig `json:"transport"`
}

var providers = map[string]mailclient.TransportConfig{
	"gmail": {
		Host:          "smtp.gmail.com",
		Port:          587,
		Security:      mailclient.SecurityStartTLS,
		AuthMechanism: mailclient.AuthPlain,
	},
	"outlook": {
		Host:          "smtp.office365.com",
		Port:          587,
		Security:      mailclient.SecurityStartTLS,
		AuthMechanism: mailclient.AuthLogin,
	},
	"yahoo": {
		Host:          "smtp.mail.yahoo.com",
		Port:          587,
		Security:      mailclient.SecurityStartTLS,
		AuthMechanism: mailclient.AuthPlain,
	},
}

// Providers returns every preset sorted by name.
func Providers() []Provider {
	out := make([]Provider, 0, len(providers))
	for name, tc := range providers {
		out = append(out, Provider{Name: name, Transport: tc})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out
}

// ResolveTransport fills the fields missing in tc from the named preset.
// An empty name returns tc unchanged.
func ResolveTransport(name string, tc mailclient.TransportConfig) (mailclient.TransportConfig, error) {
	if name == "" {
		return tc, nil
	}

	preset, ok := providers[name]
	if !ok {
		return tc, fmt.Errorf("unknown smtp provider %q", name)
	}

	err := mergo.Merge(&tc, preset)
	if err != nil {
		err = fmt.Errorf("merge smtp provider %s: %w", name, err)
		return tc, err
	}

	return tc, nil
}

// Resolve returns the transport of s with the provider preset applied.
func (s SMTP) Resolve() (mailclient.TransportConfig, error) {
	return ResolveTransport(s.Provider, s.TransportConfig)
}
