package handlerdispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/kirimsurat/internal/dispatch"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailmsg"
	"github.com/yusufsyaifudin/kirimsurat/pkg/respbuilder"
	"github.com/yusufsyaifudin/kirimsurat/pkg/tracer"
	"github.com/yusufsyaifudin/kirimsurat/pkg/validator"
	"github.com/yusufsyaifudin/kirimsurat/transport/restapi/httptyped"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/trace"
)

// Runner runs one bulk delivery. *dispatch.Engine implements it.
type Runner interface {
	Run(ctx context.Context, in dispatch.Input) (dispatch.Result, error)
}

type HandlerConfig struct {
	Dispatcher    Runner        `validate:"required"`
	DefaultPacing time.Duration `validate:"min=0"`
}

type Handler struct {
	Config HandlerConfig
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	err := validator.Validate(cfg)
	if err != nil {
		return nil, err
	}

	return &Handler{Config: cfg}, nil
}

type DispatchReqQueryParam struct {
	// PacingMS overrides the server default delay between recipients.
	PacingMS *int64 `schema:"pacing_ms"`
}

type DispatchReq struct {
	Transport     httptyped.TransportReq    `json:"transport"`
	From          string                    `json:"from"`
	FromName      string                    `json:"from_name"`
	Template      dispatch.Template         `json:"template"`
	Recipients    httptyped.RecipientsReq   `json:"recipients"`
	Attachments   []httptyped.AttachmentReq `json:"attachments"`
	AddressColumn string                    `json:"address_column"`
}

// Stream line types of the dispatch response.
const (
	LineEvent  = "event"
	LineResult = "result"
)

// Dispatch runs the delivery and streams one NDJSON event per recipient, then the result.
// Errors raised before the first recipient are answered with a plain JSON error instead.
func (h *Handler) Dispatch() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var span trace.Span
		ctx, span = tracer.StartSpan(ctx, "handlerdispatch.Dispatch")
		defer span.End()

		query := DispatchReqQueryParam{}
		queryDec := schema.NewDecoder()
		queryDec.IgnoreUnknownKeys(true)
		err := queryDec.Decode(&query, r.URL.Query())
		if err != nil {
			err = fmt.Errorf("failed decode query params: %w", err)
			resp := respbuilder.Error(ctx, respbuilder.ErrValidation, err)
			respbuilder.WriteJSON(http.StatusBadRequest, w, r, resp)
			return
		}

		var reqBody DispatchReq
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		err = dec.Decode(&reqBody)
		if err != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrValidation, err)
			respbuilder.WriteJSON(http.StatusBadRequest, w, r, resp)
			return
		}

		in, err := h.input(reqBody, query)
		if err != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrValidation, err)
			respbuilder.WriteJSON(http.StatusBadRequest, w, r, resp)
			return
		}

		stream := respbuilder.NewStreamWriter(w, r)
		in.OnProgress = func(ev dispatch.Event) {
			if _err := stream.Write(LineEvent, ev, nil); _err != nil {
				ylog.Error(ctx, "cannot write progress event", ylog.KV("error", _err))
			}
		}

		result, err := h.Config.Dispatcher.Run(ctx, in)
		if err != nil && !stream.Started() {
			kind, status := respbuilder.ErrValidation, http.StatusBadRequest
			if errors.Is(err, dispatch.ErrOpenFailed) {
				kind, status = respbuilder.ErrRelayUnavailable, http.StatusBadGateway
			}

			resp := respbuilder.Error(ctx, kind, err)
			respbuilder.WriteJSON(status, w, r, resp)
			return
		}

		var errEntity *respbuilder.ErrorEntity
		if err != nil {
			httpErr := respbuilder.Error(ctx, respbuilder.ErrUnhandled, err)
			errEntity = &httpErr.Err
		}

		if _err := stream.Write(LineResult, result, errEntity); _err != nil {
			ylog.Error(ctx, "cannot write dispatch result", ylog.KV("error", _err))
		}
	}
}

func (h *Handler) input(req DispatchReq, query DispatchReqQueryParam) (in dispatch.Input, err error) {
	set, err := req.Recipients.Set()
	if err != nil {
		err = fmt.Errorf("recipients: %w", err)
		return
	}

	attachments, err := httptyped.DecodeAttachments(req.Attachments)
	if err != nil {
		return
	}

	transport, err := req.Transport.Resolve()
	if err != nil {
		return
	}

	format, err := mailmsg.ParseBodyFormat(req.Template.Format.String())
	if err != nil {
		return
	}

	pacing := h.Config.DefaultPacing
	if query.PacingMS != nil {
		if *query.PacingMS < 0 {
			err = fmt.Errorf("pacing_ms must not be negative")
			return
		}

		pacing = time.Duration(*query.PacingMS) * time.Millisecond
	}

	tpl := req.Template
	tpl.Format = format

	in = dispatch.Input{
		Recipients:    set,
		Template:      tpl,
		Attachments:   attachments,
		Transport:     transport,
		From:          req.From,
		FromName:      req.FromName,
		AddressColumn: req.AddressColumn,
		Pacing:        pacing,
	}

	return
}

type PreviewReq struct {
	Template      dispatch.Template       `json:"template"`
	Recipients    httptyped.RecipientsReq `json:"recipients"`
	AddressColumn string                  `json:"address_column"`
	Index         int                     `json:"index"`
}

// Preview renders the template for one recipient without connecting to any relay.
func (h *Handler) Preview() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var span trace.Span
		ctx, span = tracer.StartSpan(ctx, "handlerdispatch.Preview")
		defer span.End()

		var reqBody PreviewReq
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		err := dec.Decode(&reqBody)
		if err != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrValidation, err)
			respbuilder.WriteJSON(http.StatusBadRequest, w, r, resp)
			return
		}

		set, err := reqBody.Recipients.Set()
		if err != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrValidation, err)
			respbuilder.WriteJSON(http.StatusBadRequest, w, r, resp)
			return
		}

		preview, err := dispatch.RenderPreview(set, reqBody.Index, reqBody.Template, reqBody.AddressColumn)
		if err != nil {
			resp := respbuilder.Error(ctx, respbuilder.ErrResourceNotFound, err)
			respbuilder.WriteJSON(http.StatusNotFound, w, r, resp)
			return
		}

		resp := respbuilder.Success(ctx, preview)
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}
