package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/marinelog/internal/client/notice"
	"github.com/dmitrijs2005/marinelog/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func newRegisterCommand(rt *runtime) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.app.register(cmd.Context(), username)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name (prompted when empty)")
	return cmd
}

func newLoginCommand(rt *runtime) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.app.login(cmd.Context(), username)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name (prompted when empty)")
	return cmd
}

func newLogoutCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session; local records are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.app.logout(cmd.Context())
		},
	}
}

// credentials prompts for whatever was not given on the command line.
// The caller wipes the returned password.
func (a *App) credentials(username string) (string, []byte, error) {
	var err error
	if username == "" {
		if username, err = getSimpleText(a.in, "Enter username", a.out); err != nil {
			return "", nil, err
		}
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return username, password, nil
}

func (a *App) register(ctx context.Context, username string) error {
	username, password, err := a.credentials(username)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, username, password); err != nil {
		return err
	}
	a.notify(ctx, notice.LevelSuccess, notice.Registered)
	return nil
}

func (a *App) login(ctx context.Context, username string) error {
	username, password, err := a.credentials(username)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.auth.Login(ctx, username, password); err != nil {
		return err
	}
	a.notify(ctx, notice.LevelSuccess, notice.LoggedIn)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.notify(ctx, notice.LevelInfo, notice.LoggedOut)
	return nil
}
