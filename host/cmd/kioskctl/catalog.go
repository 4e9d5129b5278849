package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kioskctl/core"
	"kioskctl/protocol"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and edit the local product catalog",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List products in sync order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()

				items, err := db.List(cmd.Context())
				if err != nil {
					return err
				}
				printCatalog(a.out, items)
				return nil
			},
		},
		&cobra.Command{
			Use:   "put <barcode> <name> <price>",
			Short: "Add or update a product",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				item, err := parseItem(args)
				if err != nil {
					return err
				}
				if protocol.UnsafeValue(item.ID) || protocol.UnsafeValue(item.Name) {
					a.log.Warn().Str("id", item.ID).Msg("product contains ',' or ':' which the device cannot parse")
				}

				db, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				return db.Put(cmd.Context(), item)
			},
		},
		&cobra.Command{
			Use:     "rm <barcode>",
			Aliases: []string{"delete"},
			Short:   "Remove a product",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				return db.Delete(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func parseItem(args []string) (core.CatalogItem, error) {
	price, err := core.ParsePrice(args[2])
	if err != nil {
		return core.CatalogItem{}, err
	}
	return core.CatalogItem{ID: args[0], Name: args[1], Price: price}, nil
}

func printCatalog(out io.Writer, items []core.CatalogItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, "Catalog is empty")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BARCODE\tNAME\tPRICE")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.ID, item.Name, item.Price)
	}
	_ = w.Flush()
}
