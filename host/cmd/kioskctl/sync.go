package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kioskctl/core"
)

func newSyncCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace the device catalog with the local one",
		Long: `Sends SYNC_START, waits for the device to erase its storage and answer
REQ_SYNC, streams every product and finishes with SYNC_END.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			k, err := a.newKiosk(ctx, db, nil, func(p core.SyncProgress) {
				fmt.Fprintf(a.out, "  %d/%d\n", p.Sent, p.Total)
			})
			if err != nil {
				return err
			}
			defer k.Close()

			if err := a.connect(k); err != nil {
				return err
			}
			if err := k.Sync(ctx); err != nil {
				return err
			}

			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := k.WaitSync(waitCtx); err != nil {
				if waitCtx.Err() != nil {
					_ = k.CancelSync()
					return fmt.Errorf("device did not finish the sync within %s", timeout)
				}
				return err
			}
			st := k.Status()
			fmt.Fprintf(a.out, "Sync complete: %d item(s)\n", st.Sync.Total)
			return k.AckSync()
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Give up if the sync has not finished after this long")
	return cmd
}
