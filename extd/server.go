package extd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/transport/restapi"
	"github.com/yusufsyaifudin/ylog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	AppName    = "kirimsurat"
	AppVersion = "1.0.0"

	defaultHTTPPort = 8080
)

// RunServer serves the REST API until SIGINT or SIGTERM.
func RunServer(ctx context.Context, cfg config.Config) (err error) {
	if ctx == nil {
		ctx = context.TODO()
	}

	shutdownTracing, err := SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		ylog.Error(ctx, "tracing preparation: failed", ylog.KV("error", err))
		return
	}

	defer shutdownTracing()

	// ** dispatch engine, the relay account comes with every request
	ylog.Info(ctx, "dispatch engine preparation: starting")
	engine, err := NewEngine(cfg.SMTP)
	if err != nil {
		ylog.Error(ctx, "dispatch engine preparation: failed", ylog.KV("error", err))
		return
	}

	// ** HTTP TRANSPORT
	ylog.Info(ctx, "http transport: starting")
	server, err := restapi.NewHTTPTransport(restapi.Config{
		AppServiceName: AppName,
		AppVersion:     AppVersion,
		Dispatcher:     engine,
		DefaultPacing:  cfg.Message.PacingOrDefault(),
	})
	if err != nil {
		ylog.Error(ctx, "http transport: failed", ylog.KV("error", err))
		return
	}

	port := cfg.Transport.HTTP.Port
	if port == 0 {
		port = defaultHTTPPort
	}

	h2s := &http2.Server{}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h2c.NewHandler(server.Server(), h2s), // HTTP/2 Cleartext handler
		ReadHeaderTimeout: 10 * time.Second,
	}

	var apiErrChan = make(chan error, 1)
	go func() {
		ylog.Info(ctx, fmt.Sprintf("http transport: done running on port %d", port))
		apiErrChan <- httpServer.ListenAndServe()
	}()

	ylog.Info(ctx, "system: up and running...")

	// ** listen for sigterm signal
	var signalChan = make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-signalChan:
		ylog.Info(ctx, "system: exiting...")
		ylog.Info(ctx, "http transport: exiting...")

		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if _err := httpServer.Shutdown(shutdownCtx); _err != nil {
			ylog.Error(ctx, "http transport: shutdown error", ylog.KV("error", _err))
		}

	case _err := <-apiErrChan:
		if _err != nil && !errors.Is(_err, http.ErrServerClosed) {
			ylog.Error(ctx, "http transport: error", ylog.KV("error", _err))
			err = _err
		}
	}

	return
}
