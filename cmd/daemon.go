package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/nhle/remindme/internal/app"
	"github.com/nhle/remindme/internal/metrics"
	"github.com/nhle/remindme/internal/model"
)

func tui(ctx *cli.Context) error {
	rt, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = rt.Logger.Sync()
		_ = rt.Close()
	}()

	if err := rt.Start(context.Background()); err != nil {
		return err
	}

	p := tea.NewProgram(app.New(rt), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

func daemon(ctx *cli.Context) error {
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

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := rt.Config.Metrics.Addr; addr != "" {
		go func() {
			if err := metrics.Serve(sigCtx, addr, rt.Logger.Named("metrics")); err != nil {
				rt.Logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	if err := rt.Start(sigCtx); err != nil {
		return err
	}
	rt.Logger.Info("Daemon started", zap.String("config", rt.ConfigPath))

	return printDeliveries(sigCtx, ctx.App.Writer, rt.Deliveries())
}

// printDeliveries writes each delivered notification until ctx is done.
func printDeliveries(ctx context.Context, w io.Writer, deliveries <-chan model.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-deliveries:
			line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), n.Title)
			if n.Payload != "" {
				line += ": " + n.Payload
			}
			fmt.Fprintln(w, line)
		}
	}
}
