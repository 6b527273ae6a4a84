package dispatch

import (
	"errors"
	"time"

	"github.com/yusufsyaifudin/kirimsurat/pkg/mailclient"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

// ErrOpenFailed marks a run that could not start because the relay session failed to open.
var ErrOpenFailed = errors.New("cannot open relay session")

type OutcomeKind string

const (
	Sent                  OutcomeKind = "sent"
	SkippedInvalidAddress OutcomeKind = "skipped_invalid_address"
	Failed                OutcomeKind = "failed"
)

// Stage tells where a Failed outcome came from.
type Stage string

const (
	StageBuild    Stage = "build"
	StageTransmit Stage = "transmit"
)

// Outcome is the result for one recipient.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	Stage     Stage       `json:"stage,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	MessageID string      `json:"message_id,omitempty"`

	err error
}

// Err returns the underlying error of a Failed outcome.
func (o Outcome) Err() error {
	return o.err
}

func sentOutcome(messageID string) Outcome {
	return Outcome{Kind: Sent, MessageID: messageID}
}

func skippedOutcome(reason string) Outcome {
	return Outcome{Kind: SkippedInvalidAddress, Reason: reason}
}

func failedOutcome(stage Stage, err error) Outcome {
	return Outcome{Kind: Failed, Stage: stage, Reason: err.Error(), err: err}
}

// LogEntry is one line of the delivery log. Entry i belongs to recipient row i.
type LogEntry struct {
	Index   int     `json:"index"`
	Address string  `json:"address"`
	Outcome Outcome `json:"outcome"`
}

// Summary counts outcomes. Total is always the full recipient count, also for cancelled or failed runs.
type Summary struct {
	Total     int  `json:"total"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Processed int  `json:"processed"`
	Cancelled bool `json:"cancelled"`
}

func (s *Summary) add(o Outcome) {
	s.Processed++
	switch o.Kind {
	case Sent:
		s.Sent++
	case Failed:
		s.Failed++
	case SkippedInvalidAddress:
		s.Skipped++
	}
}

type Result struct {
	RunID      string     `json:"run_id"`
	Summary    Summary    `json:"summary"`
	Log        []LogEntry `json:"log"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Event is emitted once per processed recipient, in row order.
type Event struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Index     int     `json:"index"`
	Address   string  `json:"address"`
	Outcome   Outcome `json:"outcome"`
}

// Template is the subject and body with {Column} placeholders.
type Template struct {
	Subject string             `json:"subject" validate:"required"`
	Body    string             `json:"body" validate:"required"`
	Format  mailmsg.BodyFormat `json:"format" validate:"required,oneof=plain html"`
}

// Input is everything one run needs. It is treated as immutable.
type Input struct {
	Recipients  *recipient.Set             `validate:"required"`
	Template    Template                   `validate:"-"`
	Attachments []mailmsg.Attachment       `validate:"-"`
	Transport   mailclient.TransportConfig `validate:"-"`
	From        string                     `validate:"required,mailaddr"`
	FromName    string                     `validate:"-"`

	// AddressColumn defaults to recipient.DefaultAddressColumn.
	AddressColumn string `validate:"-"`

	// Pacing is the delay between two recipients. Zero disables it.
	Pacing time.Duration `validate:"min=0"`

	// OnProgress is called synchronously after each recipient.
	OnProgress func(Event) `validate:"-"`
}
