package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/app"
	"github.com/nhle/remindme/internal/logger"
	"github.com/nhle/remindme/internal/model"
)

// openRuntime loads the configuration named by the global --config flag and
// opens the runtime. interactive redirects logs to a file so they do not
// draw over the terminal UI.
func openRuntime(ctx *cli.Context, interactive bool) (*app.Runtime, error) {
	cfgPath := ctx.GlobalString("config")
	if cfgPath == "" {
		cfgPath = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if interactive && cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(filepath.Dir(cfgPath), "remindme.log")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	rt, err := app.Open(cfgPath, cfg, log)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// withRuntime opens a runtime with stored credentials loaded, runs fn and
// closes the runtime again. Commands that work offline tolerate a missing
// login.
func withRuntime(ctx *cli.Context, fn func(rt *app.Runtime) error) error {
	rt, err := openRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = rt.Logger.Sync()
		if err := rt.Close(); err != nil {
			rt.Logger.Warn("Closing runtime", zap.Error(err))
		}
	}()

	if err := rt.LoadCredentials(); err != nil && !errors.Is(err, app.ErrNotLoggedIn) {
		return err
	}
	return fn(rt)
}

// printNotifications writes one line per notification.
func printNotifications(w io.Writer, items []model.Notification, now time.Time) {
	for _, n := range items {
		origin := "LOC"
		if n.IsRemote() {
			origin = fmt.Sprintf("WEB #%d", n.RemoteID)
		}
		fmt.Fprintf(w, "%-10s %s  %-7s %s", origin, n.FireAt.Format("2006-01-02 15:04:05"), relative(n.FireAt, now), n.Title)
		if n.Payload != "" {
			fmt.Fprintf(w, " (%s)", n.Payload)
		}
		fmt.Fprintln(w)
	}
}

func relative(at, now time.Time) string {
	d := at.Sub(now).Round(time.Second)
	if d <= 0 {
		return "due"
	}
	return "+" + d.String()
}
