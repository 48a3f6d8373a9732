package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/habat-tech/todrive/internal/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
	maxBodyBytes      = 1 << 20
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Telegram webhook over HTTP",
		Long: "Serves the webhook with interactive authorization disabled. Each update is " +
			"handled inside Telegram's delivery request, which cannot wait for a browser " +
			"consent, so run `todrive login` against the same store first.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			wasInteractive := disableConsentWait(resolvedCfg)
			a, logger, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			if wasInteractive {
				logger.Info("interactive authorization disabled while serving the webhook; use todrive login to authorize")
			}
			ctx := shutdownContext(cmd.Context(), logger)

			srv := &http.Server{
				Addr:              addr,
				Handler:           proxyHandler(a.HandleRequest, logger),
				ReadHeaderTimeout: readHeaderTimeout,
			}
			return runServer(ctx, srv, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

// disableConsentWait turns off the loopback flow and reports whether it was on.
func disableConsentWait(cfg *config.Config) bool {
	was := cfg.Auth.Interactive
	cfg.Auth.Interactive = false
	return was
}

// runServer serves until ctx is done, then drains in-flight requests.
func runServer(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting webhook server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type proxyFunc func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// proxyHandler adapts net/http to the API Gateway handler used on Lambda.
func proxyHandler(next proxyFunc, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := toProxyRequest(r)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		resp, err := next(r.Context(), req)
		if err != nil {
			logger.Error("handler error", slog.String("error", err.Error()))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeProxyResponse(w, resp)
	})
}

func toProxyRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return events.APIGatewayProxyRequest{}, err
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = v[0]
	}
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		query[k] = v[0]
	}

	req := events.APIGatewayProxyRequest{
		Path:                  r.URL.Path,
		HTTPMethod:            r.Method,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  string(body),
	}
	if !utf8.Valid(body) {
		req.Body = base64.StdEncoding.EncodeToString(body)
		req.IsBase64Encoded = true
	}
	return req, nil
}

func writeProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	io.WriteString(w, resp.Body)
}
