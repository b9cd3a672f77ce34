package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/marinelog/internal/client/config"
)

// Version is reported by --version; set at build time with
// -ldflags "-X github.com/dmitrijs2005/marinelog/internal/client/cli.Version=...".
var Version = "dev"

// runtime carries the App built in PersistentPreRunE to the subcommands.
type runtime struct {
	in  io.Reader
	out io.Writer
	app *App
}

func (r *runtime) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	r.app, err = NewApp(cmd.Context(), cfg, r.in, r.out)
	return err
}

func (r *runtime) close() error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}

// NewRootCommand builds the marinelog command tree. The returned closer
// releases whatever the executed command opened.
func NewRootCommand(in io.Reader, out io.Writer) (*cobra.Command, func() error) {
	rt := &runtime{in: in, out: out}

	var defaults config.Config
	defaults.LoadDefaults()

	root := &cobra.Command{
		Use:               "marinelog",
		Short:             "Offline-first log of marine service visits",
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: rt.open,
	}
	defaults.AddFlags(root.PersistentFlags())
	root.SetIn(in)
	root.SetOut(out)

	root.AddCommand(
		newRegisterCommand(rt),
		newLoginCommand(rt),
		newLogoutCommand(rt),
		newAddCommand(rt),
		newEditCommand(rt),
		newDeleteCommand(rt),
		newListCommand(rt),
		newShowCommand(rt),
		newSyncCommand(rt),
		newWatchCommand(rt),
		newExportCommand(rt),
	)
	return root, rt.close
}

// Execute runs the command line in args until ctx is done or the command
// returns.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	root, closeFn := NewRootCommand(in, out)
	root.SetErr(errOut)
	root.SetArgs(args)
	defer func() { _ = closeFn() }()
	return root.ExecuteContext(ctx)
}
