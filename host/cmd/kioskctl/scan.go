package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <barcode>",
		Short: "Simulate a barcode scan on the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			k, err := a.newKiosk(ctx, db, nil, nil)
			if err != nil {
				return err
			}
			defer k.Close()

			if err := a.connect(k); err != nil {
				return err
			}
			if err := k.Scan(args[0]); err != nil {
				return err
			}
			// let the device answer before the port closes
			time.Sleep(a.cfg.Serial.ReadTimeout)
			return nil
		},
	}
}
