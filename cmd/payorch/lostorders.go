package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func lostOrdersCmd() *cobra.Command {
	var gatewayKey string
	cmd := &cobra.Command{
		Use:   "lost-orders",
		Short: "Print orders stuck in their gateway's new status",
		Long: `Print orders that never left their gateway's new status after the grace window.

Examples:
  payorch lost-orders
  payorch lost-orders --gateway cardgw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			orders, err := a.lostOrders.List(cmd.Context(), gatewayKey)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(orders)
		},
	}
	cmd.Flags().StringVarP(&gatewayKey, "gateway", "g", "", "limit to one gateway")
	return cmd
}
