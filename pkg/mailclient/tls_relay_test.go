package mailclient_test

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/require"
)

// tlsBackend accepts one account and keeps every delivered message.
type tlsBackend struct {
	username string
	password string

	mu       sync.Mutex
	messages []string
}

func (b *tlsBackend) Login(_ *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	if username != b.username || password != b.password {
		return nil, errors.New("invalid credentials")
	}

	return &tlsSession{backend: b}, nil
}

func (b *tlsBackend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return nil, smtp.ErrAuthRequired
}

func (b *tlsBackend) Messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.messages))
	copy(out, b.messages)
	return out
}

type tlsSession struct {
	backend *tlsBackend
}

func (s *tlsSession) Reset() {}

func (s *tlsSession) Logout() error { return nil }

func (s *tlsSession) Mail(_ string, _ smtp.MailOptions) error { return nil }

func (s *tlsSession) Rcpt(_ string) error { return nil }

func (s *tlsSession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, string(b))
	s.backend.mu.Unlock()
	return nil
}

// selfSignedTLS borrows the loopback certificate of httptest.
func selfSignedTLS(t *testing.T) *tls.Config {
	t.Helper()

	srv := httptest.NewUnstartedServer(http.NotFoundHandler())
	srv.StartTLS()
	certs := srv.TLS.Certificates
	srv.Close()

	return &tls.Config{Certificates: certs, MinVersion: tls.VersionTLS12}
}

// newTLSRelay starts a go-smtp server. implicit wraps the listener in TLS,
// otherwise the server offers STARTTLS.
func newTLSRelay(t *testing.T, implicit bool) (*tlsBackend, int) {
	t.Helper()

	be := &tlsBackend{username: "user@example.com", password: "secret"}
	tlsCfg := selfSignedTLS(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	s := smtp.NewServer(be)
	s.Domain = "relay.test"
	s.ErrorLog = nopLogger{}
	if implicit {
		ln = tls.NewListener(ln, tlsCfg)
	} else {
		s.TLSConfig = tlsCfg
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ln)
	}()

	t.Cleanup(func() {
		_ = s.Close()
		_ = ln.Close()
		<-done
	})

	return be, port
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

func (nopLogger) Println(...interface{}) {}
