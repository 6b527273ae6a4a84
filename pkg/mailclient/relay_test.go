package mailclient_test

import (
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// relay is a scripted SMTP server on a loopback listener.
type relay struct {
	ln net.Listener

	extensions []string
	rejectAuth bool
	rejectRcpt map[string]bool
	silent     bool // never sends the greeting
	dropOnData bool // closes the connection when DATA arrives
	stallData  bool // never answers DATA
	stallEhlo  bool // never answers EHLO
	stallDot   bool // reads the body but never answers the final dot

	mu       sync.Mutex
	commands []string
	messages []string
	wg       sync.WaitGroup
}

func newRelay(t *testing.T, configure func(r *relay)) *relay {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r := &relay{
		ln:         ln,
		extensions: []string{"PIPELINING", "AUTH PLAIN LOGIN"},
		rejectRcpt: map[string]bool{},
	}

	if configure != nil {
		configure(r)
	}

	go r.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		r.wg.Wait()
	})

	return r
}

func (r *relay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *relay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer conn.Close()
			r.handle(conn)
		}()
	}
}

func (r *relay) handle(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	if r.silent {
		_, _ = io.Copy(io.Discard, conn)
		return
	}

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 relay.test ESMTP ready")

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}

		r.record(line)
		cmd := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(cmd, "EHLO"):
			if r.stallEhlo {
				_, _ = io.Copy(io.Discard, conn)
				return
			}

			lines := append([]string{"relay.test"}, r.extensions...)
			for i, l := range lines {
				sep := "-"
				if i == len(lines)-1 {
					sep = " "
				}

				_ = tp.PrintfLine("250%s%s", sep, l)
			}

		case strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250 relay.test")

		case strings.HasPrefix(cmd, "AUTH PLAIN"):
			if r.rejectAuth {
				_ = tp.PrintfLine("535 5.7.8 Authentication credentials invalid")
				continue
			}

			_ = tp.PrintfLine("235 2.7.0 Authentication successful")

		case strings.HasPrefix(cmd, "AUTH LOGIN"):
			_ = tp.PrintfLine("334 UGFzc3dvcmQ6")
			if _, err = tp.ReadLine(); err != nil {
				return
			}

			_ = tp.PrintfLine("235 2.7.0 Authentication successful")

		case strings.HasPrefix(cmd, "MAIL FROM:"):
			_ = tp.PrintfLine("250 2.1.0 Ok")

		case strings.HasPrefix(cmd, "RCPT TO:"):
			addr := strings.Trim(strings.TrimSpace(line[len("RCPT TO:"):]), "<>")
			if r.rejectRcpt[addr] {
				_ = tp.PrintfLine("550 5.1.1 Mailbox unavailable")
				continue
			}

			_ = tp.PrintfLine("250 2.1.5 Ok")

		case cmd == "DATA":
			if r.dropOnData {
				return
			}

			if r.stallData {
				_, _ = io.Copy(io.Discard, conn)
				return
			}

			_ = tp.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
			b, err := tp.ReadDotBytes()
			if err != nil {
				return
			}

			r.mu.Lock()
			r.messages = append(r.messages, string(b))
			r.mu.Unlock()

			if r.stallDot {
				_, _ = io.Copy(io.Discard, conn)
				return
			}

			_ = tp.PrintfLine("250 2.0.0 Ok: queued")

		case cmd == "RSET", cmd == "NOOP":
			_ = tp.PrintfLine("250 2.0.0 Ok")

		case cmd == "QUIT":
			_ = tp.PrintfLine("221 2.0.0 Bye")
			return

		default:
			_ = tp.PrintfLine("502 5.5.2 Command not recognized")
		}
	}
}

func (r *relay) record(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, line)
}

func (r *relay) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.commands))
	copy(out, r.commands)
	return out
}

func (r *relay) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// countPrefix counts recorded commands starting with prefix, case-insensitive.
func (r *relay) countPrefix(prefix string) int {
	n := 0
	for _, c := range r.Commands() {
		if strings.HasPrefix(strings.ToUpper(c), strings.ToUpper(prefix)) {
			n++
		}
	}

	return n
}
