package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/satori/uuid"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailclient"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailtmpl"
	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
	"github.com/yusufsyaifudin/kirimsurat/pkg/tracer"
	"github.com/yusufsyaifudin/kirimsurat/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type EngineConfig struct {
	Opener mailclient.Opener   `validate:"required"`
	IDGen  mailmsg.IDGenerator `validate:"required"`
}

// Engine runs bulk deliveries. One Run uses exactly one relay session and sends sequentially.
type Engine struct {
	opener mailclient.Opener
	idGen  mailmsg.IDGenerator
}

func New(cfg EngineConfig) (*Engine, error) {
	err := validator.Validate(cfg)
	if err != nil {
		err = fmt.Errorf("dispatch engine config: %w", err)
		return nil, err
	}

	return &Engine{
		opener: cfg.Opener,
		idGen:  cfg.IDGen,
	}, nil
}

// Run sends one personalized message per recipient row, in order, and returns the log.
//
// An invalid input or a session that cannot be opened returns an error and no log entry.
// When ctx is cancelled the run stops between recipients and returns the partial result
// with Summary.Cancelled set and a nil error.
func (e *Engine) Run(ctx context.Context, in Input) (result Result, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "dispatch.Run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	result = Result{
		RunID:     uuid.NewV4().String(),
		Log:       make([]LogEntry, 0),
		StartedAt: time.Now(),
	}

	defer func() {
		result.FinishedAt = time.Now()
	}()

	err = validateInput(in)
	if err != nil {
		err = fmt.Errorf("validation error: %w", err)
		return
	}

	total := in.Recipients.Len()
	result.Summary.Total = total
	result.Log = make([]LogEntry, 0, total)
	span.SetAttributes(attribute.String("run_id", result.RunID), attribute.Int("recipients", total))

	builder, err := mailmsg.NewBuilder(mailmsg.BuilderConfig{
		Format:      in.Template.Format,
		Attachments: in.Attachments,
		IDGen:       e.idGen,
	})
	if err != nil {
		return
	}

	ctx = withRunLogger(ctx, result.RunID)
	if ctx.Err() != nil {
		result.Summary.Cancelled = true
		ylog.Info(ctx, "dispatch cancelled before opening relay session")
		return
	}

	ylog.Info(ctx, "opening relay session",
		ylog.KV("relay", in.Transport.Addr()),
		ylog.KV("security", in.Transport.Security),
		ylog.KV("recipients", total),
	)

	client, err := e.opener.Open(ctx, in.Transport)
	if err != nil {
		ylog.Error(ctx, "relay session open failed", ylog.KV("error", err))
		err = fmt.Errorf("%w: %w", ErrOpenFailed, err)
		return
	}

	defer closeSession(ctx, client)

	addressColumn := in.AddressColumn
	if addressColumn == "" {
		addressColumn = recipient.DefaultAddressColumn
	}

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			result.Summary.Cancelled = true
			break
		}

		row, _err := in.Recipients.Row(i)
		if _err != nil {
			// cannot happen while i < Len
			err = _err
			return
		}

		address := row.String(addressColumn)
		outcome := e.deliver(ctx, client, builder, in, row, addressColumn)
		logOutcome(ctx, i, address, outcome)

		result.Log = append(result.Log, LogEntry{
			Index:   i,
			Address: address,
			Outcome: outcome,
		})
		result.Summary.add(outcome)

		if in.OnProgress != nil {
			in.OnProgress(Event{
				Processed: result.Summary.Processed,
				Total:     total,
				Index:     i,
				Address:   address,
				Outcome:   outcome,
			})
		}

		if i < total-1 && !pace(ctx, in.Pacing) {
			result.Summary.Cancelled = true
			break
		}
	}

	span.SetAttributes(
		attribute.Int("sent", result.Summary.Sent),
		attribute.Int("failed", result.Summary.Failed),
		attribute.Int("skipped", result.Summary.Skipped),
		attribute.Bool("cancelled", result.Summary.Cancelled),
	)

	ylog.Info(ctx, "dispatch finished",
		ylog.KV("summary", result.Summary),
	)

	return
}

// deliver produces the outcome of one row. Transmission runs detached from cancellation,
// the session bounds it with its own timeout.
func (e *Engine) deliver(ctx context.Context, client mailclient.Client, builder *mailmsg.Builder, in Input, row recipient.Row, addressColumn string) Outcome {
	address, ok := row.Address(addressColumn)
	if !ok {
		return skippedOutcome("address is missing")
	}

	if !recipient.IsPlausibleAddress(address) {
		return skippedOutcome(fmt.Sprintf("address %q is not valid", address))
	}

	renderer := mailtmpl.NewRenderer(row)
	msg, err := builder.Build(mailmsg.Input{
		From:     in.From,
		FromName: in.FromName,
		To:       address,
		Subject:  renderer.Replace(in.Template.Subject),
		Body:     renderer.Replace(in.Template.Body),
	})
	if err != nil {
		return failedOutcome(StageBuild, err)
	}

	err = client.Transmit(context.WithoutCancel(ctx), msg)
	if err != nil {
		return failedOutcome(StageTransmit, err)
	}

	return sentOutcome(msg.ID)
}

// pace waits d and reports false when ctx is cancelled first.
func pace(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func closeSession(ctx context.Context, client mailclient.Client) {
	if err := client.Close(); err != nil {
		ylog.Error(ctx, "closing relay session error", ylog.KV("error", err))
		return
	}

	ylog.Debug(ctx, "relay session closed")
}

func validateInput(in Input) error {
	err := validator.Validate(in)
	if err != nil {
		return err
	}

	err = validator.Validate(in.Template)
	if err != nil {
		return fmt.Errorf("template: %w", err)
	}

	err = validator.Validate(in.Transport)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	return nil
}

func withRunLogger(ctx context.Context, runID string) context.Context {
	data := tracer.LogData{
		RemoteAddr: "system",
		TraceID:    runID,
		RunID:      runID,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		data.TraceID = sc.TraceID().String()
	}

	logTraceData, err := ylog.NewTracer(data, ylog.WithTag("tracer"))
	if err != nil {
		return ctx
	}

	return ylog.Inject(ctx, logTraceData)
}

func logOutcome(ctx context.Context, index int, address string, o Outcome) {
	switch o.Kind {
	case Sent:
		ylog.Debug(ctx, "message sent",
			ylog.KV("index", index),
			ylog.KV("address", address),
			ylog.KV("message_id", o.MessageID),
		)
	case Failed:
		ylog.Error(ctx, "message failed",
			ylog.KV("index", index),
			ylog.KV("address", address),
			ylog.KV("stage", o.Stage),
			ylog.KV("error", o.Reason),
		)
	default:
		ylog.Info(ctx, "recipient skipped",
			ylog.KV("index", index),
			ylog.KV("address", address),
			ylog.KV("reason", o.Reason),
		)
	}
}
