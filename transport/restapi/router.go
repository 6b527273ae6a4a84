package restapi

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yusufsyaifudin/kirimsurat/pkg/respbuilder"
	"github.com/yusufsyaifudin/kirimsurat/pkg/tracer"
	"github.com/yusufsyaifudin/kirimsurat/pkg/validator"
	"github.com/yusufsyaifudin/kirimsurat/transport/restapi/handlerdispatch"
	"github.com/yusufsyaifudin/kirimsurat/transport/restapi/handlerprovider"
	"go.opentelemetry.io/otel"
)

type Config struct {
	AppServiceName string                 `validate:"required"`
	AppVersion     string                 `validate:"required"`
	Dispatcher     handlerdispatch.Runner `validate:"required"`
	DefaultPacing  time.Duration          `validate:"min=0"`
}

type DefaultHTTP struct {
	router *chi.Mux
}

func NewHTTPTransport(cfg Config) (*DefaultHTTP, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("http transport cfg error: %w", err)
	}

	// ** Dispatch handler
	handlerDispatch, err := handlerdispatch.NewHandler(handlerdispatch.HandlerConfig{
		Dispatcher:    cfg.Dispatcher,
		DefaultPacing: cfg.DefaultPacing,
	})
	if err != nil {
		return nil, err
	}

	// ** Provider presets handler
	handlerProvider := handlerprovider.NewHandler()

	router := chi.NewRouter()

	skip := func(r *http.Request) bool {
		switch strings.TrimSpace(path.Clean(r.URL.Path)) {
		case "/health",
			"/ping":
			return true
		}

		return false
	}

	router.Use(middleware.StripSlashes)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Tracer-ID"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	router.Use(func(next http.Handler) http.Handler {
		return tracer.Middleware(tracer.MiddlewareConfig{
			TracerName:     "github.com/yusufsyaifudin/kirimsurat",
			ServiceName:    cfg.AppServiceName,
			SkipFunc:       skip,
			TracerProvider: otel.GetTracerProvider(),    // global tracer provider
			TextPropagator: otel.GetTextMapPropagator(), // use global text map propagator
		}, next)
	})

	// add trace id and also log request response
	router.Use(func(next http.Handler) http.Handler {
		return requestLogger(skip, next)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := respbuilder.Success(r.Context(), map[string]string{
			"status":  "ok",
			"service": cfg.AppServiceName,
			"version": cfg.AppVersion,
		})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/dispatch", handlerDispatch.Dispatch()) // send to every recipient, NDJSON progress stream
		r.Post("/preview", handlerDispatch.Preview())   // render the template for one recipient
		r.Get("/providers", handlerProvider.List())     // relay presets
	})

	instance := &DefaultHTTP{
		router: router,
	}

	return instance, nil
}

// Server .
func (a *DefaultHTTP) Server() http.Handler {
	return a.router
}
