package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kioskctl/core"
	"kioskctl/host/store"
)

func newSalesCmd(a *app) *cobra.Command {
	var (
		day   string
		limit uint64
	)

	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Show recorded sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter store.SalesFilter
			if day != "" {
				start, err := time.ParseInLocation(time.DateOnly, day, time.Local)
				if err != nil {
					return fmt.Errorf("--day: %w", err)
				}
				filter.Since = start
				filter.Until = start.AddDate(0, 0, 1)
			}
			filter.Limit = limit

			db, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			sales, err := db.ListSales(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printSales(a.out, sales)
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Only sales of this local date (YYYY-MM-DD)")
	cmd.Flags().Uint64Var(&limit, "limit", 0, "Show at most this many sales")
	return cmd
}

func printSales(out io.Writer, sales []core.SaleEvent) {
	if len(sales) == 0 {
		fmt.Fprintln(out, "No sales recorded")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tBARCODE\tNAME\tPRICE\tQTY\tSUBTOTAL")
	for _, s := range sales {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.Time.Local().Format(time.DateTime), s.Barcode, s.Name, s.Price, s.Quantity, s.Subtotal())
	}
	_ = w.Flush()
}
