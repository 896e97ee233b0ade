package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type serviceRunner func(run func(cmd *cobra.Command, svc rateService, args []string) error) func(*cobra.Command, []string) error

func listCmd(with serviceRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored currency rates",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, svc rateService, args []string) error {
			rates, err := svc.GetRates(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FROM\tTO\tRATE\tUPDATED")
			for _, r := range rates {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.BaseCurrency, r.TargetCurrency, r.Rate, r.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		}),
	}
}

func historyCmd(with serviceRunner) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent rate changes",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, svc rateService, args []string) error {
			changes, err := svc.GetRateHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeChanges(cmd, changes)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows")
	return cmd
}

func setCmd(with serviceRunner) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "set FROM TO RATE",
		Short: "Set one directional rate",
		Args:  cobra.ExactArgs(3),
		RunE: with(func(cmd *cobra.Command, svc rateService, args []string) error {
			if actor == "" {
				return fmt.Errorf("--actor is required")
			}
			rate, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", args[2], err)
			}
			changes, err := svc.UpdateRates(cmd.Context(), []domain.RateUpdate{{From: args[0], To: args[1], Rate: rate}}, actor)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "rate unchanged")
				return nil
			}
			writeChanges(cmd, changes)
			return nil
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "", "Who is making the change (recorded in history)")
	return cmd
}

func convertCmd(with serviceRunner) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "convert AMOUNT FROM",
		Short: "Convert an amount into one or every supported currency",
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, svc rateService, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			if to != "" {
				fmt.Fprintf(out, "%s %s\n", svc.Convert(cmd.Context(), amount, args[1], to), domain.NormalizeCurrency(to))
				return nil
			}

			amounts := svc.ConvertToAll(cmd.Context(), amount, args[1])
			codes := make([]string, 0, len(amounts))
			for code := range amounts {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				fmt.Fprintf(out, "%s %s\n", amounts[code], code)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&to, "to", "", "Target currency (default: all supported)")
	return cmd
}

func writeChanges(cmd *cobra.Command, changes []domain.RateChange) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FROM\tTO\tOLD\tNEW\tBY\tSOURCE\tAT")
	for _, c := range changes {
		old := "-"
		if c.OldRate != nil {
			old = c.OldRate.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", c.BaseCurrency, c.TargetCurrency, old, c.NewRate, c.ChangedBy, c.Source, c.CreatedAt.UTC().Format(time.RFC3339))
	}
	_ = w.Flush()
}
