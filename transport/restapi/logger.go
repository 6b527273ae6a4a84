package restapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/satori/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/kirimsurat/pkg/respbuilder"
	"github.com/yusufsyaifudin/kirimsurat/pkg/tracer"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// redactedKeys are never written to the access log.
var redactedKeys = map[string]struct{}{
	"password":       {},
	"content_base64": {},
}

func toSimpleMap(h http.Header) map[string]string {
	out := map[string]string{}
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") {
			out[k] = "***"
			continue
		}

		out[k] = strings.Join(v, " ")
	}

	return out
}

// redact masks secret values in a decoded JSON document.
func redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			if _, ok := redactedKeys[strings.ToLower(k)]; ok {
				val[k] = "***"
				continue
			}

			val[k] = redact(item)
		}

		return val

	case []interface{}:
		for i, item := range val {
			val[i] = redact(item)
		}

		return val

	default:
		return v
	}
}

// requestLogger injects the trace data and writes one access log per request.
// The response is copied while it is written, so streamed responses keep flowing.
func requestLogger(skipFunc func(r *http.Request) bool, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		if skipFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		var globalErr error
		t1 := time.Now().UTC()
		ctx := r.Context()

		traceID := uuid.NewV4().String()
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}

		propagateData := tracer.LogData{
			RemoteAddr: r.RemoteAddr,
			TraceID:    traceID,
		}

		logTraceData, err := ylog.NewTracer(propagateData, ylog.WithTag("tracer"))
		if err != nil {
			// this should never happen, but once it happens, we need to log in the response
			globalErr = multierr.Append(globalErr, fmt.Errorf("error prepare log tracer data: %w", err))
		}

		responseTracer := respbuilder.Tracer{
			RemoteAddr: r.RemoteAddr,
			AppTraceID: traceID,
		}

		// Inject logger and response tracer at same time
		if logTraceData != nil {
			ctx = ylog.Inject(ctx, logTraceData)
		}

		ctx = respbuilder.Inject(ctx, responseTracer)
		r = r.WithContext(ctx)

		reqBody := make([]byte, 0)
		if r.Body != nil {
			defer func() {
				if _err := r.Body.Close(); _err != nil {
					_err = fmt.Errorf("cannot close request body: %w", _err)
					globalErr = multierr.Append(globalErr, _err)
				}
			}()

			reqBody, err = io.ReadAll(r.Body)
			if err != nil {
				globalErr = multierr.Append(globalErr, fmt.Errorf("error read request body: %w", err))
				reqBody = []byte(``)
			}

			r.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		}

		var reqBodyStr = ""
		var reqBodyObj interface{}
		if len(reqBody) > 0 {
			if _err := json.Unmarshal(reqBody, &reqBodyObj); _err != nil {
				globalErr = multierr.Append(globalErr, fmt.Errorf("error marshal request body: %w", _err))
				reqBodyStr = string(reqBody)
			} else {
				reqBodyObj = redact(reqBodyObj)
			}
		}

		// continue serve, and copy the response as it goes
		respBody := &bytes.Buffer{}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(respBody)
		next.ServeHTTP(ww, r)

		var respBodyStr = ""
		var respBodyData interface{}
		if strings.HasPrefix(ww.Header().Get("Content-Type"), "application/json") {
			if _err := json.Unmarshal(respBody.Bytes(), &respBodyData); _err != nil {
				globalErr = multierr.Append(globalErr, fmt.Errorf("error marshal response body: %w", _err))
				respBodyStr = respBody.String()
			}
		} else {
			respBodyStr = respBody.String()
		}

		errStr := ""
		if globalErr != nil {
			errStr = globalErr.Error()
		}

		// log request
		ylog.Access(ctx, ylog.AccessLogData{
			Path: r.RequestURI,
			Request: ylog.HTTPData{
				Header:     toSimpleMap(r.Header),
				DataObject: reqBodyObj,
				DataString: reqBodyStr,
			},
			Response: ylog.HTTPData{
				Header:     toSimpleMap(ww.Header()),
				DataObject: respBodyData,
				DataString: respBodyStr,
			},
			Error:       errStr,
			ElapsedTime: time.Since(t1).Milliseconds(),
		})
	}
}
