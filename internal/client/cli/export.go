package cli

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/marinelog/internal/client/export"
	"github.com/dmitrijs2005/marinelog/internal/client/notice"
)

type exportFlags struct {
	rng    string
	client string
	ids    []string
	dir    string
}

func newExportCommand(rt *runtime) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write records to an .xlsx spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(f.ids) > 0 && !cmd.Flags().Changed("range") {
				f.rng = string(export.RangeSelected)
			}
			_, err := rt.app.export(cmd.Context(), f)
			return err
		},
	}
	cmd.Flags().StringVar(&f.rng, "range", string(export.RangeAll), "today, week, month, all or selected")
	cmd.Flags().StringVar(&f.client, "client", "", "only records whose client name contains this text")
	cmd.Flags().StringSliceVar(&f.ids, "ids", nil, "record ids or id prefixes to export")
	cmd.Flags().StringVarP(&f.dir, "out", "o", ".", "directory the spreadsheet is written to")
	return cmd
}

// export writes the spreadsheet and returns its path, or "" when nothing
// matched.
func (a *App) export(ctx context.Context, f exportFlags) (string, error) {
	rng, err := export.ParseRange(f.rng)
	if err != nil {
		return "", err
	}

	ids := make([]string, 0, len(f.ids))
	for _, ref := range f.ids {
		id, err := a.resolveID(ctx, ref)
		if err != nil {
			return "", err
		}
		ids = append(ids, id)
	}

	all, err := a.records.List(ctx)
	if err != nil {
		return "", err
	}

	now := a.now()
	rows, err := export.Rows(all, export.Filter{
		Range:      rng,
		IDs:        ids,
		ClientName: f.client,
		Now:        now,
		Location:   time.Local,
	})
	if errors.Is(err, export.ErrNothingToExport) {
		a.notify(ctx, notice.LevelWarning, notice.NothingToExport)
		return "", nil
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(f.dir, export.FileName(rng, now))
	if err := export.SaveXLSX(path, rows, a.tr.Language().String()); err != nil {
		return "", err
	}
	a.notify(ctx, notice.LevelSuccess, notice.Exported, path)
	return path, nil
}
