package mailclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
	"github.com/yusufsyaifudin/kirimsurat/pkg/validator"
	"go.uber.org/multierr"
)

// Dialer opens relay sessions. The zero value uses the default timeouts.
type Dialer struct {
	// OpenTimeout bounds dial, greeting, STARTTLS and authentication together.
	OpenTimeout time.Duration

	// TransmitTimeout bounds one whole message transaction.
	TransmitTimeout time.Duration
}

var _ Opener = (*Dialer)(nil)

// Open makes exactly one connection attempt, one TLS upgrade when configured and one
// authentication handshake. Any failure releases the connection and is returned as is.
func (d *Dialer) Open(ctx context.Context, cfg TransportConfig) (Client, error) {
	err := validator.Validate(cfg)
	if err != nil {
		err = fmt.Errorf("validation on transport config error: %w", err)
		return nil, err
	}

	openTimeout := d.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = DefaultOpenTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	conn, c, err := initClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	transmitTimeout := d.TransmitTimeout
	if transmitTimeout <= 0 {
		transmitTimeout = DefaultTransmitTimeout
	}

	return &Session{
		smtp:            c,
		conn:            conn,
		transmitTimeout: transmitTimeout,
	}, nil
}

// Session is an open relay connection. It is safe for concurrent use but only one
// transaction is ever in flight.
type Session struct {
	smtp            *smtp.Client
	conn            net.Conn
	transmitTimeout time.Duration

	lock   sync.Mutex
	broken error
	closed bool
}

var _ Client = (*Session)(nil)

// Transmit runs RSET, MAIL, RCPT and DATA for msg.
func (s *Session) Transmit(ctx context.Context, msg *mailmsg.Message) (err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	if s.broken != nil {
		return fmt.Errorf("%w: %s", ErrConnectionLost, s.broken.Error())
	}

	if msg == nil {
		return fmt.Errorf("nil message")
	}

	if err = ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(s.transmitTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	defer func() {
		if err == nil || isReply(err) {
			return
		}

		s.broken = err
		err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}()

	// RSET command is for aborting already started mail transaction (tools.ietf.org/html/rfc5321#section-4.1.1.5).
	if err = bound(s.smtp, deadline); err != nil {
		return
	}

	err = s.smtp.Reset()
	if err != nil {
		err = fmt.Errorf("RSET cmd failed: %w", err)
		return
	}

	// New transaction is initiated using the MAIL command (tools.ietf.org/html/rfc5321#section-4.1.1.2).
	if err = bound(s.smtp, deadline); err != nil {
		return
	}

	err = s.smtp.Mail(msg.From, nil)
	if err != nil {
		err = fmt.Errorf("MAIL cmd failed: %w", err)
		return
	}

	if err = bound(s.smtp, deadline); err != nil {
		return
	}

	err = s.smtp.Rcpt(msg.To)
	if err != nil {
		err = fmt.Errorf("error recipient %s: %w", msg.To, err)
		return
	}

	if err = bound(s.smtp, deadline); err != nil {
		return
	}

	wc, err := s.smtp.Data()
	if err != nil {
		err = fmt.Errorf("error data writer: %w", err)
		return
	}

	// the client clears the deadline after DATA, the body write is bounded here
	if err = s.conn.SetDeadline(deadline); err != nil {
		err = fmt.Errorf("set deadline: %w", err)
		return
	}

	_, err = msg.WriteTo(wc)
	if err != nil {
		_ = wc.Close()
		err = fmt.Errorf("error data copy: %w", err)
		return
	}

	if err = bound(s.smtp, deadline); err != nil {
		return
	}

	err = wc.Close()
	if err != nil {
		err = fmt.Errorf("error data close: %w", err)
		return
	}

	return
}

// Close sends QUIT and falls back to closing the socket. Calling it again is a no-op.
// https://stackoverflow.com/a/19670136/5489910
func (s *Session) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	var err error
	if s.broken == nil {
		_ = bound(s.smtp, time.Now().Add(closeTimeout))

		_err := s.smtp.Quit()
		if _err == nil {
			return nil
		}

		err = multierr.Append(err, fmt.Errorf("quit command error: %w", _err))
	}

	_err := s.smtp.Close()
	if _err != nil {
		err = multierr.Append(err, fmt.Errorf("close command error: %w", _err))
		return err
	}

	return nil
}

// bound caps the next command of c at deadline. The client sets its own connection
// deadline from CommandTimeout and SubmissionTimeout on every command, so the
// remaining budget is handed over there.
func bound(c *smtp.Client, deadline time.Time) error {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return os.ErrDeadlineExceeded
	}

	c.CommandTimeout = remaining
	c.SubmissionTimeout = remaining
	return nil
}

// isReply reports whether err is a reply from the relay, which keeps the connection usable.
func isReply(err error) bool {
	var smtpErr *smtp.SMTPError
	return errors.As(err, &smtpErr)
}

// ----- Function here is intended to have simple function (not as method handler in a struct),
// because it will be eaiser to debug and test.

func initClient(ctx context.Context, cfg TransportConfig) (conn net.Conn, c *smtp.Client, err error) {
	conn, err = dial(ctx, cfg)
	if err != nil {
		return
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// a cancelled context interrupts the handshake
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	c, err = smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		err = fmt.Errorf("error new smtp client: %w", err)
		return nil, nil, err
	}

	defer func() {
		if err != nil {
			_ = c.Close()
			conn, c = nil, nil
		}
	}()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultOpenTimeout)
	}

	// every step re-checks the context, a cancel landing between two commands
	// would otherwise be overwritten by the next command deadline
	step := func() error {
		if _err := ctx.Err(); _err != nil {
			return _err
		}

		return bound(c, deadline)
	}

	if err = step(); err != nil {
		return
	}

	err = c.Hello("localhost")
	if err != nil {
		err = fmt.Errorf("error ehlo: %w", err)
		return
	}

	if cfg.Security == SecurityStartTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			err = ErrStartTLSUnsupported
			return
		}

		if err = step(); err != nil {
			return
		}

		err = c.StartTLS(tlsConfig(cfg))
		if err != nil {
			err = fmt.Errorf("error start tls: %w", err)
			return
		}
	}

	if cfg.Username != "" {
		if err = step(); err != nil {
			return
		}

		err = c.Auth(saslClient(cfg))
		if err != nil {
			err = fmt.Errorf("error auth: %w", err)
			return
		}
	}

	if err = step(); err != nil {
		return
	}

	err = c.Noop()
	if err != nil {
		err = fmt.Errorf("check smtp is not ok: %w", err)
		return
	}

	if !stop() {
		err = ctx.Err()
		return
	}

	err = conn.SetDeadline(time.Time{})
	return
}

func dial(ctx context.Context, cfg TransportConfig) (net.Conn, error) {
	dialer := &net.Dialer{}
	if cfg.Security == SecurityTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig(cfg)}
		conn, err := tlsDialer.DialContext(ctx, "tcp", cfg.Addr())
		if err != nil {
			return nil, fmt.Errorf("tls dial error: %w", err)
		}

		return conn, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("tcp dial error: %w", err)
	}

	return conn, nil
}

func tlsConfig(cfg TransportConfig) *tls.Config {
	return &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify, // #nosec G402 -- opt-in for self-signed relays
		MinVersion:         tls.VersionTLS12,
	}
}

func saslClient(cfg TransportConfig) sasl.Client {
	if cfg.AuthMechanism == AuthLogin {
		return sasl.NewLoginClient(cfg.Username, cfg.Password)
	}

	return sasl.NewPlainClient(cfg.AuthIdentity, cfg.Username, cfg.Password)
}
