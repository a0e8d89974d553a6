package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/server"
	"payment-orchestrator/internal/worker"
)

func serveCmd() *cobra.Command {
	var release bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if release {
				gin.SetMode(gin.ReleaseMode)
			}
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&release, "release", true, "run gin in release mode")
	return cmd
}

func runServe(parent context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.LostOrderReportInterval > 0 {
		go worker.NewLostOrderReporter(a.lostOrders, a.logger, a.cfg.LostOrderReportInterval).Run(ctx)
	}

	srv := server.New(
		a.charges,
		a.webhooks,
		a.lostOrders,
		gateway.NewCatalog(a.registry),
		a.db,
		a.logger,
		server.Options{
			AllowedOrigins:  a.cfg.AllowedOrigins(),
			ChargeRateLimit: a.cfg.ChargeRateLimit,
		},
	)
	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
		WriteTimeout:      a.cfg.GatewayTimeout + 15*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infow("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
