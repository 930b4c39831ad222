package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli"

	"github.com/nhle/remindme/internal/app"
)

var credentialFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "username, u",
		Usage: "account name (prompted when omitted)",
	},
	cli.StringFlag{
		Name:   "password, p",
		Usage:  "account password (prompted when omitted)",
		EnvVar: "REMINDME_PASSWORD",
	},
}

// promptFunc asks for any credential not given on the command line.
var promptFunc = promptCredentials

func promptCredentials(username, password *string) error {
	var fields []huh.Field
	if *username == "" {
		fields = append(fields, huh.NewInput().Title("Username").Value(username))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func credentials(ctx *cli.Context) (string, string, error) {
	username := ctx.String("username")
	password := ctx.String("password")
	if err := promptFunc(&username, &password); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(username), password, nil
}

func login(ctx *cli.Context) error {
	username, password, err := credentials(ctx)
	if err != nil {
		return err
	}
	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := rt.Login(c, username, password); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "logged in as %s\n", username)
		return nil
	})
}

func register(ctx *cli.Context) error {
	username, password, err := credentials(ctx)
	if err != nil {
		return err
	}
	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := rt.Register(c, username, password); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "registered and logged in as %s\n", username)
		return nil
	})
}

func admin(ctx *cli.Context) error {
	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		isAdmin, err := rt.AdminStatus(c)
		if err != nil {
			return err
		}
		if isAdmin {
			fmt.Fprintf(ctx.App.Writer, "%s is an administrator\n", rt.Client.Username())
		} else {
			fmt.Fprintf(ctx.App.Writer, "%s is a regular user\n", rt.Client.Username())
		}
		return nil
	})
}

func usersAdd(ctx *cli.Context) error {
	username, password, err := credentials(ctx)
	if err != nil {
		return err
	}
	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := rt.AddUser(c, username, password, ctx.Bool("admin")); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "user %s saved\n", username)
		return nil
	})
}

func usersDelete(ctx *cli.Context) error {
	names := app.ParseNames(strings.Join(ctx.Args(), ","))
	if len(names) == 0 {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := rt.DeleteUsers(c, names); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "deleted %s\n", strings.Join(names, ", "))
		return nil
	})
}
