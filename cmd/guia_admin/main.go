// Command guia_admin is the support tool for inspecting and fixing point
// balances.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"guia_service/internal/app"
	"guia_service/internal/payments"
	"guia_service/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "guia_admin",
		Short:        "Guia do Coração support commands",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(grantCmd())
	rootCmd.AddCommand(fulfillCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp runs fn against a fully wired App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <uid>",
		Short: "Show a user's balance and recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				u, err := a.Store.GetUser(ctx, args[0])
				if err != nil {
					return fmt.Errorf("user %s: %w", args[0], err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s): %d pontos, streak %d\n", u.UID, u.Email, u.Points, u.DailyStreak)

				txs, err := a.Ledger.History(ctx, u.UID, limit)
				if err != nil {
					return err
				}
				for _, tx := range txs {
					fmt.Fprintf(out, "  %s  %-12s %+6d  -> %6d  %s\n",
						tx.CreatedAt.Format("2006-01-02 15:04"), tx.Type, tx.Amount, tx.BalanceAfter, tx.Description)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "Number of transactions to show")
	return cmd
}

func grantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant <uid> <points>",
		Short: "Credit points to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("points must be an integer: %w", err)
			}
			reason, _ := cmd.Flags().GetString("reason")
			key, _ := cmd.Flags().GetString("key")
			if key == "" {
				key = "admin-" + uuid.NewString()
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				u, err := a.Ledger.Credit(ctx, args[0], points, store.TxAdmin, key, reason, key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "granted %d pontos to %s, balance %d\n", points, u.UID, u.Points)
				return nil
			})
		},
	}
	cmd.Flags().StringP("reason", "r", "Ajuste manual", "Description stored on the transaction")
	cmd.Flags().String("key", "", "Idempotency key; re-running with the same key does nothing")
	return cmd
}

func fulfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fulfill <orderId>",
		Short: "Credit a paid order whose webhook was lost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				order, err := a.Store.GetOrder(ctx, args[0])
				if err != nil {
					return fmt.Errorf("order %s: %w", args[0], err)
				}
				err = a.Payments.Fulfill(ctx, payments.Confirmation{
					OrderID:     order.ID,
					Provider:    "admin",
					ExternalID:  order.ExternalID,
					AmountCents: order.AmountCents,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s fulfilled: %d pontos to %s\n", order.ID, order.Points, order.UID)
				return nil
			})
		},
	}
}
