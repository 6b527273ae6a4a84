package mailclient

import (
	"context"
	"io"

	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
)

// Client is one authenticated session with a relay. Messages are sent one at a time.
type Client interface {
	io.Closer

	// Transmit delivers msg to its envelope recipient.
	// A protocol rejection only affects this message, a network failure breaks the session
	// and every later call returns ErrConnectionLost.
	Transmit(ctx context.Context, msg *mailmsg.Message) error
}

// Opener establishes sessions. *Dialer implements it.
type Opener interface {
	Open(ctx context.Context, cfg TransportConfig) (Client, error)
}
