package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/nhle/remindme/internal/app"
	"github.com/nhle/remindme/internal/model"
)

// commandTimeout bounds the remote work of a one-shot command.
const commandTimeout = 30 * time.Second

var addFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "title, t",
		Usage: "short reminder text (required)",
	},
	cli.StringFlag{
		Name:  "payload, p",
		Usage: "optional detail shown with the reminder",
	},
	cli.IntFlag{
		Name:  "delay, d",
		Usage: "seconds from now until the reminder fires",
		Value: 60,
	},
	cli.BoolFlag{
		Name:  "upload, u",
		Usage: "also send the reminder to the service",
	},
}

func add(ctx *cli.Context) error {
	if ctx.Int("delay") < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	draft := model.Draft{
		Title:   ctx.String("title"),
		Payload: ctx.String("payload"),
		Delay:   time.Duration(ctx.Int("delay")) * time.Second,
		Upload:  ctx.Bool("upload"),
	}

	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if draft.Upload && !rt.HasCredentials() {
			return app.ErrNotLoggedIn
		}
		n, err := rt.AddNotification(c, draft)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "scheduled %q for %s\n", n.Title, n.FireAt.Format("2006-01-02 15:04:05"))
		if n.IsRemote() {
			fmt.Fprintf(ctx.App.Writer, "uploaded as #%d\n", n.RemoteID)
		}
		return nil
	})
}

func list(ctx *cli.Context) error {
	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		items, err := rt.ListPending(c)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(ctx.App.Writer, "remindme: nothing scheduled")
			return nil
		}
		printNotifications(ctx.App.Writer, items, time.Now())
		return nil
	})
}

func remoteList(ctx *cli.Context) error {
	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		items, err := rt.ListRemote(c)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(ctx.App.Writer, "remindme: the service holds no notifications for you")
			return nil
		}
		printNotifications(ctx.App.Writer, items, time.Now())
		return nil
	})
}

func remoteDelete(ctx *cli.Context) error {
	ids, invalid := app.ParseIDs(strings.Join(ctx.Args(), ","))
	if len(invalid) > 0 {
		return fmt.Errorf("invalid notification ids: %s", strings.Join(invalid, ", "))
	}
	if len(ids) == 0 {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}

	return withRuntime(ctx, func(rt *app.Runtime) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := rt.DeleteRemote(c, ids); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "deleted %d notification(s)\n", len(ids))
		return nil
	})
}
