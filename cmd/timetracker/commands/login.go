package commands

import (
	"context"
	"fmt"
)

// LoginCmd implements the 'login' command.
type LoginCmd struct {
	Username string `short:"u" required:"" help:"Account name"`
	Password string `short:"p" required:"" env:"TIMETRACKER_PASSWORD" help:"Account password"`
}

func (l *LoginCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	d, err := openAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAgent(ctx, d)

	resp, err := d.Client().Login(ctx, l.Username, l.Password)
	if err != nil {
		return err
	}
	if resp.User.Username == "" {
		resp.User.Username = l.Username
	}
	if err := d.Session().Login(ctx, resp.Token, resp.User); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Signed in as %s\n", resp.User.Username)
	return nil
}

// LogoutCmd implements the 'logout' command.
type LogoutCmd struct{}

func (l *LogoutCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	d, err := openAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAgent(ctx, d)

	if err := d.Session().Logout(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.Out, "Signed out")
	return nil
}
