// Command simulate drives a running payorch server against an in-process fake card
// processor that sometimes charges the card and answers too late. At the end it lists
// the orders that were charged at the processor but never reconciled.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payment-orchestrator/internal/config"
	"payment-orchestrator/internal/database"
	"payment-orchestrator/internal/gateway/cardgw"
	"payment-orchestrator/internal/infrastructure/payment"
	applog "payment-orchestrator/internal/log"
	"payment-orchestrator/internal/repo"
)

type options struct {
	serverURL    string
	providerAddr string
	orders       int
	lag          time.Duration
	replay       bool
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Fire card charges at a payorch server through a flaky fake processor",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.serverURL, "server", "http://localhost:8080", "payorch base URL")
	cmd.Flags().StringVar(&opts.providerAddr, "provider-addr", "127.0.0.1:9090", "listen address of the fake processor")
	cmd.Flags().IntVarP(&opts.orders, "orders", "n", 20, "number of charges")
	cmd.Flags().DurationVar(&opts.lag, "lag", 20*time.Second, "how late the processor answers a lagging charge; set above GATEWAY_TIMEOUT")
	cmd.Flags().BoolVar(&opts.replay, "replay", true, "deliver every webhook twice")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	logger, err := applog.NewLogger(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	const webhookSecret = "whsec_simulation"
	provider := payment.NewCardProvider(payment.Config{
		WebhookSecret: webhookSecret,
		Lag:           opts.lag,
		Replay:        opts.replay,
		Logger:        logger.Named("processor"),
	})
	ln, err := net.Listen("tcp", opts.providerAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.providerAddr, err)
	}
	providerServer := &http.Server{Handler: provider, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := providerServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("fake processor stopped", "err", err)
		}
	}()
	defer providerServer.Close()

	settings := repo.NewSettingRepo(db.Gorm())
	for name, value := range map[string]string{
		"secret_key":     "sk_simulation",
		"public_key":     "pk_simulation",
		"webhook_secret": webhookSecret,
		"api_url":        "http://" + ln.Addr().String(),
	} {
		if err := settings.Upsert(ctx, cardgw.Key+"_"+name, value); err != nil {
			return fmt.Errorf("store %s setting: %w", name, err)
		}
	}

	client := &http.Client{Timeout: opts.lag + 30*time.Second}
	if _, err := post(ctx, client, opts.serverURL+"/admin/gateways/invalidate", nil); err != nil {
		return fmt.Errorf("invalidate gateway catalog: %w", err)
	}

	started := time.Now()
	fmt.Printf("--- firing %d charges at %s ---\n", opts.orders, opts.serverURL)
	for i := 0; i < opts.orders; i++ {
		env, err := post(ctx, client, opts.serverURL+"/orders/charge", map[string]any{
			"gateway":  cardgw.Key,
			"amount":   1000 + i,
			"currency": "USD",
			"user_id":  fmt.Sprint(i + 1),
			"document": map[string]any{"id": fmt.Sprintf("sim-%d", i+1), "service": "simulation"},
		})
		if err != nil {
			return err
		}
		fmt.Printf("[%2d] %-7s %s\n", i+1, env.Type, env.Message)
		time.Sleep(250 * time.Millisecond)
	}

	fmt.Println("--- waiting for webhooks ---")
	provider.Wait()

	return report(ctx, db.DB(), provider, started, logger)
}

// report lists this run's orders still in the card gateway's new status and whether the
// processor actually took the money.
func report(ctx context.Context, db *sql.DB, provider *payment.CardProvider, since time.Time, logger *zap.SugaredLogger) error {
	lost, err := repo.NewOrderRepo(db).FindLostOrders(ctx, cardgw.Key, cardgw.StatusNew, time.Now(), 500)
	if err != nil {
		return err
	}

	phantom := 0
	for _, o := range lost {
		if o.CreatedAt.Before(since) {
			continue
		}
		paid, known := provider.Status(o.ID.String())
		switch {
		case paid:
			phantom++
			fmt.Printf("PHANTOM  order %s charged %d %s with no document\n", o.ID, o.Amount, o.Currency)
		case known:
			fmt.Printf("declined order %s\n", o.ID)
		default:
			fmt.Printf("unsent   order %s\n", o.ID)
		}
	}
	logger.Infow("simulation finished", "stuck_orders", len(lost), "phantom_charges", phantom)
	return nil
}

type envelope struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func post(ctx context.Context, client *http.Client, url string, body any) (*envelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response (%d): %w", url, resp.StatusCode, err)
	}
	return &env, nil
}
