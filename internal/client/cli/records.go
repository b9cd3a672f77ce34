package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/marinelog/internal/client/export"
	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/client/notice"
	"github.com/dmitrijs2005/marinelog/internal/client/services"
)

// startLayouts are accepted by --start, tried in order.
var startLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006 15:04",
	"2006-01-02",
}

// recordFlags are shared by add and edit.
type recordFlags struct {
	client  string
	vessel  string
	start   string
	details string
	photos  []string
}

func (f *recordFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.client, "client", "", "client name")
	fs.StringVar(&f.vessel, "vessel", "", "vessel name")
	fs.StringVar(&f.start, "start", "", "visit start, e.g. \"2024-03-01 09:30\" (local time)")
	fs.StringVar(&f.details, "details", "", "work carried out")
	fs.StringArrayVar(&f.photos, "photo", nil, "photo file to attach (repeatable)")
}

func parseStart(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised start %q, use YYYY-MM-DD HH:MM", s)
}

func newAddCommand(rt *runtime) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new service visit",
		Long: `Record a new service visit. Fields not given as flags are prompted for.
The record is saved locally first and synced right away when the server is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.app.add(cmd.Context(), f, cmd.Flags())
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newEditCommand(rt *runtime) *cobra.Command {
	var (
		f      recordFlags
		remove []int
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields or photos of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.app.edit(cmd.Context(), args[0], f, remove, cmd.Flags())
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().IntSliceVar(&remove, "remove-photo", nil, "1-based position of a photo to remove (repeatable)")
	return cmd
}

func newDeleteCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record here and, when reachable, on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := rt.app.resolveID(ctx, args[0])
			if err != nil {
				return err
			}
			rt.app.probe(ctx)
			return rt.app.records.Delete(ctx, id)
		},
	}
}

func newListCommand(rt *runtime) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the local records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.app.list(cmd.Context(), refresh)
		},
	}
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "sync with the server before listing")
	return cmd
}

func newShowCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.app.show(cmd.Context(), args[0])
		},
	}
}

func (a *App) add(ctx context.Context, f recordFlags, fs *pflag.FlagSet) error {
	var err error
	if !fs.Changed("client") {
		if f.client, err = getSimpleText(a.in, "Client name", a.out); err != nil {
			return err
		}
	}
	if !fs.Changed("vessel") {
		if f.vessel, err = getSimpleText(a.in, "Vessel name", a.out); err != nil {
			return err
		}
	}
	if !fs.Changed("details") {
		if f.details, err = GetMultiline(a.in, "Details", a.out); err != nil {
			return err
		}
	}

	start := a.now()
	if f.start != "" {
		if start, err = parseStart(f.start, time.Local); err != nil {
			return err
		}
	}

	e := a.records.NewRecord()
	e.SetClientName(f.client)
	e.SetVesselName(f.vessel)
	e.SetDetails(f.details)
	e.SetStartDateTime(start)
	if err := a.attach(e, f.photos); err != nil {
		e.Cancel()
		return err
	}

	a.probe(ctx)
	rec, err := e.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, rec.ID)
	return nil
}

func (a *App) edit(ctx context.Context, ref string, f recordFlags, remove []int, fs *pflag.FlagSet) error {
	id, err := a.resolveID(ctx, ref)
	if err != nil {
		return err
	}
	e, err := a.records.Edit(ctx, id)
	if err != nil {
		return err
	}

	if fs.Changed("client") {
		e.SetClientName(f.client)
	}
	if fs.Changed("vessel") {
		e.SetVesselName(f.vessel)
	}
	if fs.Changed("details") {
		e.SetDetails(f.details)
	}
	if fs.Changed("start") {
		start, err := parseStart(f.start, time.Local)
		if err != nil {
			e.Cancel()
			return err
		}
		e.SetStartDateTime(start)
	}

	// highest position first so earlier removals don't shift later ones
	remove = slices.Clone(remove)
	slices.Sort(remove)
	slices.Reverse(remove)
	remove = slices.Compact(remove)
	for _, pos := range remove {
		if err := e.RemovePhoto(pos - 1); err != nil {
			e.Cancel()
			return fmt.Errorf("photo %d: %w", pos, err)
		}
	}

	if err := a.attach(e, f.photos); err != nil {
		e.Cancel()
		return err
	}

	a.probe(ctx)
	_, err = e.Submit(ctx)
	return err
}

func (a *App) attach(e *services.EditSession, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read photo: %w", err)
		}
		added, err := e.AttachPhoto(data)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if !added {
			fmt.Fprintf(a.out, "%s is already attached, skipped\n", filepath.Base(path))
		}
	}
	return nil
}

// resolveID accepts a full id or an unambiguous prefix of one, as printed
// by list.
func (a *App) resolveID(ctx context.Context, ref string) (string, error) {
	all, err := a.records.List(ctx)
	if err != nil {
		return "", err
	}
	var match []string
	for _, r := range all {
		if r.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(r.ID, ref) {
			match = append(match, r.ID)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("%w: %s", services.ErrRecordNotFound, ref)
	case 1:
		return match[0], nil
	}
	return "", fmt.Errorf("id prefix %q matches %d records", ref, len(match))
}

func (a *App) list(ctx context.Context, refresh bool) error {
	if refresh {
		a.probe(ctx)
		if _, err := a.records.Reconcile(ctx); err != nil {
			return err
		}
	}

	all, err := a.records.List(ctx)
	if err != nil {
		return err
	}

	switch {
	case !a.records.StoreAvailable():
		fmt.Fprintf(a.out, "!! %s\n", a.tr.Text(notice.New(notice.LevelError, notice.StoreDegraded)))
	case a.records.Degraded():
		fmt.Fprintf(a.out, "!! %s\n", a.tr.Text(notice.New(notice.LevelWarning, notice.RefreshFailed)))
	}

	if len(all) == 0 {
		fmt.Fprintln(a.out, "No records")
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("ID", "CLIENT", "VESSEL", "START", "PHOTOS", "STATE")
	for _, r := range all {
		table.AddRow(shortID(r.ID), r.ClientName, r.VesselName,
			r.StartDateTime.In(time.Local).Format(export.DateLayout), len(r.Photos), syncState(r))
	}
	fmt.Fprintln(a.out, table)
	return nil
}

func (a *App) show(ctx context.Context, ref string) error {
	id, err := a.resolveID(ctx, ref)
	if err != nil {
		return err
	}
	r, err := a.records.Get(ctx, id)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.Wrap = true
	table.MaxColWidth = 80
	table.AddRow("ID:", r.ID)
	table.AddRow("Client:", r.ClientName)
	table.AddRow("Vessel:", r.VesselName)
	table.AddRow("Start:", r.StartDateTime.In(time.Local).Format(export.DateLayout))
	table.AddRow("Details:", r.Details)
	table.AddRow("State:", syncState(r))
	table.AddRow("Updated:", r.UpdatedAt.In(time.Local).Format(export.DateLayout))
	for i, p := range r.Photos {
		table.AddRow(fmt.Sprintf("Photo %d:", i+1), describePhoto(p))
	}
	fmt.Fprintln(a.out, table)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func syncState(r models.ServiceRecord) string {
	if r.Synced {
		return "synced"
	}
	return "pending"
}

func describePhoto(p models.PhotoRef) string {
	if p.Remote() {
		return p.URL
	}
	return fmt.Sprintf("%s (%d KB)", export.PendingUpload, (len(p.Data)+1023)/1024)
}
