package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/events"
)

func listenCmd() *cobra.Command {
	var serviceName string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print payment completion events for a client service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serviceName == "" {
				return errors.New("--service is required")
			}
			cfg, logger, err := loadBase()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(os.Stdout)
			return events.Listen(ctx, cfg.Database.DSN(), serviceName, logger, func(_ context.Context, ev domain.PaymentCompleted) error {
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("write event: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&serviceName, "service", "s", "", "client service whose channel to follow")
	return cmd
}
