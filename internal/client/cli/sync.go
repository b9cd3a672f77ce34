package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/marinelog/internal/client/services"
)

func newSyncCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local records with the server once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt.app.probe(ctx)
			report, err := rt.app.records.Reconcile(ctx)
			if err != nil {
				return err
			}
			rt.app.printReport(report)
			return nil
		},
	}
}

func newWatchCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep syncing on reconnects and remote changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.app.watch(cmd.Context())
		},
	}
}

func (a *App) watch(ctx context.Context) error {
	d := services.NewDaemon(a.records, a.monitor, a.api, a.notices, a.logger.With("component", "daemon"))
	d.OnReport = a.printReport
	return d.Run(ctx)
}

func (a *App) printReport(r services.Report) {
	if r.Skipped != services.SkipNone || r.Coalesced {
		return
	}
	fmt.Fprintf(a.out, "pulled %d, pushed %d, failed %d, deletes confirmed %d\n",
		r.Pulled, r.Pushed, len(r.Failed), r.DeletesConfirmed)

	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(a.out, "  %s: %v\n", shortID(id), r.Failed[id])
	}
}
