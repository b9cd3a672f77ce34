package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/marinelog/internal/server"
	"github.com/dmitrijs2005/marinelog/internal/server/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("marinelog-server", pflag.ContinueOnError)
	defaults := &config.Config{}
	defaults.LoadDefaults()
	defaults.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
